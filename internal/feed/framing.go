package feed

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/yanun0323/errors"

	"tob/pkg/exception"
)

// HeaderSize is the length prefix in front of every message.
const HeaderSize = 2

// MaxFrameSize is the largest message a 2-byte prefix can describe.
const MaxFrameSize = math.MaxUint16

// AppendFrame appends msg with its big-endian length prefix.
func AppendFrame(dst, msg []byte) ([]byte, error) {
	if len(msg) == 0 {
		return dst, exception.ErrEmptyFrame
	}
	if len(msg) > MaxFrameSize {
		return dst, exception.ErrFrameLimit
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(msg)))
	return append(dst, msg...), nil
}

// SplitDatagram calls fn for every message packed in datagram.
// The slices passed to fn alias datagram.
func SplitDatagram(datagram []byte, fn func(msg []byte) error) error {
	for len(datagram) > 0 {
		if len(datagram) < HeaderSize {
			return exception.ErrShortFrame
		}
		n := int(binary.BigEndian.Uint16(datagram))
		if n == 0 {
			return exception.ErrEmptyFrame
		}
		datagram = datagram[HeaderSize:]
		if len(datagram) < n {
			return errors.Wrapf(exception.ErrShortFrame, "want %d bytes, have %d", n, len(datagram))
		}
		if err := fn(datagram[:n]); err != nil {
			return err
		}
		datagram = datagram[n:]
	}
	return nil
}

// Reader reads length-prefixed messages from a byte stream.
type Reader struct {
	r   *bufio.Reader
	hdr [HeaderSize]byte
	buf []byte
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64<<10), buf: make([]byte, 0, 256)}
}

// Next returns the next message. The slice is valid until the next call.
// It returns io.EOF at a clean end of stream and ErrShortFrame when the stream
// ends inside a message.
func (r *Reader) Next() ([]byte, error) {
	if _, err := io.ReadFull(r.r, r.hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, exception.ErrShortFrame
		}
		return nil, err
	}
	n := int(binary.BigEndian.Uint16(r.hdr[:]))
	if n == 0 {
		return nil, exception.ErrEmptyFrame
	}
	if cap(r.buf) < n {
		r.buf = make([]byte, n)
	}
	r.buf = r.buf[:n]
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, exception.ErrShortFrame
		}
		return nil, err
	}
	return r.buf, nil
}

// Batcher packs messages into datagrams of bounded size and count.
type Batcher struct {
	maxBytes    int
	maxMessages int
	buf         []byte
	count       int
}

// NewBatcher creates a batcher. Zero limits fall back to 1400 bytes and 20
// messages.
func NewBatcher(maxBytes, maxMessages int) *Batcher {
	if maxBytes <= 0 {
		maxBytes = 1400
	}
	if maxMessages <= 0 {
		maxMessages = 20
	}
	return &Batcher{maxBytes: maxBytes, maxMessages: maxMessages}
}

// Add appends msg. When msg does not fit, the pending datagram is returned
// first and msg starts the next one.
func (b *Batcher) Add(msg []byte) (full []byte, err error) {
	if b.count > 0 && (b.count >= b.maxMessages || len(b.buf)+HeaderSize+len(msg) > b.maxBytes) {
		full = b.Flush()
	}
	b.buf, err = AppendFrame(b.buf, msg)
	if err != nil {
		return full, err
	}
	b.count++
	return full, nil
}

// Flush returns the pending datagram, or nil when empty. The returned slice
// is owned by the caller.
func (b *Batcher) Flush() []byte {
	if b.count == 0 {
		return nil
	}
	out := b.buf
	b.buf = make([]byte, 0, cap(out))
	b.count = 0
	return out
}
