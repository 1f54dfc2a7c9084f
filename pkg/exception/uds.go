package exception

import "github.com/yanun0323/errors"

// Socket ingress errors, shared by the uds client and server.
var (
	ErrEmptyPathUDS = errors.New("uds: empty path")
	ErrNilClientUDS = errors.New("uds: nil client")
	ErrNilServerUDS = errors.New("uds: nil server")

	// ErrListeningUDS is returned by a second Listen on the same server.
	ErrListeningUDS = errors.New("uds: already listening")
	// ErrNotListeningUDS is returned by Accept or Serve before Listen.
	ErrNotListeningUDS = errors.New("uds: not listening")
	// ErrNotSocketUDS guards against unlinking a regular file at the socket path.
	ErrNotSocketUDS = errors.New("uds: path exists and is not a socket")
)
