package exception

import "github.com/yanun0323/errors"

// Risk gate errors
var (
	ErrUnknownProfile = errors.New("risk: unknown profile")
	ErrPriceFormat    = errors.New("risk: malformed reference price")
)
