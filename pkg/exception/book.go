package exception

import "github.com/yanun0323/errors"

var (
	ErrUnresolvedSymbol = errors.New("book: unresolved symbol")
	ErrSymbolOutOfRange = errors.New("symbol index out of universe")
	ErrNotOwned         = errors.New("book: symbol not owned by shard")
	ErrNotBookEvent     = errors.New("book: event does not address a book")
)
