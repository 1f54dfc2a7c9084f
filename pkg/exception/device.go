package exception

import "github.com/yanun0323/errors"

// Register device errors
var (
	ErrDeviceClosed      = errors.New("csr: device closed")
	ErrRegisterUnaligned = errors.New("csr: unaligned register offset")
	ErrRegisterRange     = errors.New("csr: register offset out of range")
)
