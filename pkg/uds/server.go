package uds

import (
	"context"
	"net"
	"os"
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tob/pkg/exception"
)

// Handler serves one accepted stream. It should return when ctx is done.
type Handler func(ctx context.Context, conn *net.UnixConn)

// Server listens for Unix domain socket stream connections.
type Server struct {
	addr net.UnixAddr

	mu sync.Mutex
	ln *net.UnixListener
	wg sync.WaitGroup
}

// NewServer creates a server for the provided socket path.
func NewServer(path string) (*Server, error) {
	if path == "" {
		return nil, exception.ErrEmptyPathUDS
	}
	return &Server{addr: net.UnixAddr{Name: path, Net: unixNetwork}}, nil
}

// Path returns the configured socket path.
func (s *Server) Path() string {
	if s == nil {
		return ""
	}
	return s.addr.Name
}

// Listen starts listening on the configured socket path.
// It removes a stale socket file when present.
func (s *Server) Listen() error {
	if s == nil {
		return exception.ErrNilServerUDS
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return exception.ErrListeningUDS
	}
	if err := RemoveIfExists(s.addr.Name); err != nil {
		return err
	}
	ln, err := net.ListenUnix(unixNetwork, &s.addr)
	if err != nil {
		return errors.Wrap(err, "listen uds")
	}
	ln.SetUnlinkOnClose(true)
	s.ln = ln
	return nil
}

// Accept waits for the next incoming connection.
func (s *Server) Accept() (*net.UnixConn, error) {
	if s == nil {
		return nil, exception.ErrNilServerUDS
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return nil, exception.ErrNotListeningUDS
	}
	return ln.AcceptUnix()
}

// Serve accepts connections until ctx is done or the listener is closed, and
// runs handler for each one in its own goroutine. It waits for the handlers
// before returning.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	if s == nil {
		return exception.ErrNilServerUDS
	}
	if handler == nil {
		return exception.ErrNilInstance
	}
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()
	defer s.wg.Wait()

	for {
		conn, err := s.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) || errors.Is(err, exception.ErrNotListeningUDS) {
				return nil
			}
			return errors.Wrap(err, "accept uds")
		}
		logs.Infof("uds: accepted connection on %s", s.addr.Name)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			stopConn := context.AfterFunc(ctx, func() { _ = conn.Close() })
			defer stopConn()
			handler(ctx, conn)
		}()
	}
}

// Close stops the listener.
func (s *Server) Close() error {
	if s == nil {
		return exception.ErrNilServerUDS
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	s.ln = nil
	return err
}

// RemoveIfExists removes the socket file if it exists.
func RemoveIfExists(path string) error {
	if path == "" {
		return exception.ErrEmptyPathUDS
	}
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return exception.ErrNotSocketUDS
	}
	return os.Remove(path)
}
