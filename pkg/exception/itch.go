package exception

import "github.com/yanun0323/errors"

// Decoder errors. Every one of them is counted and the stream continues.
var (
	ErrUnknownMessageType = errors.New("itch: unknown message type")
	ErrLengthMismatch     = errors.New("itch: length mismatch")
	ErrTypeMismatch       = errors.New("itch: declared type does not match frame")
	ErrFrameTooLarge      = errors.New("itch: frame exceeds max message size")
	ErrInvalidSide        = errors.New("itch: invalid side")
)

// Replay framing errors.
var (
	ErrShortFrame = errors.New("feed: short frame")
	ErrEmptyFrame = errors.New("feed: empty frame")
	ErrFrameLimit = errors.New("feed: frame longer than a 2-byte length prefix allows")
)
