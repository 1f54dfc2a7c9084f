package exception

import "github.com/yanun0323/errors"

var (
	ErrSymbolEmpty     = errors.New("symbol: empty symbol")
	ErrSymbolTooLong   = errors.New("symbol: symbol longer than 8 bytes")
	ErrSymbolDuplicate = errors.New("symbol: duplicate entry")
	ErrSymbolFormat    = errors.New("symbol: malformed line")
)
