package recorder

import (
	"bufio"
	"io"

	"tob/internal/codec"
)

// ReaderOptions controls record decoding.
type ReaderOptions struct {
	DisableChecksum bool
}

// Reader decodes one segment sequentially.
type Reader struct {
	r        *bufio.Reader
	opts     ReaderOptions
	buf      []byte
	header   bool
	openedAt int64
}

// NewReader wraps an io.Reader positioned at the start of a segment.
func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	return &Reader{
		r:    bufio.NewReader(r),
		opts: opts,
		buf:  make([]byte, recordSize),
	}
}

// OpenedAt returns the segment creation time in nanoseconds once the header is read.
func (r *Reader) OpenedAt() int64 {
	return r.openedAt
}

// Next returns the next record or io.EOF at a clean end of segment.
func (r *Reader) Next() (codec.Record, error) {
	if !r.header {
		if err := r.readHeader(); err != nil {
			return codec.Record{}, err
		}
	}

	n, err := io.ReadFull(r.r, r.buf)
	if err != nil {
		if err == io.EOF && n == 0 {
			return codec.Record{}, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return codec.Record{}, ErrTruncatedRecord
		}
		return codec.Record{}, err
	}
	if !r.opts.DisableChecksum && !codec.VerifyRecord(r.buf) {
		return codec.Record{}, ErrChecksumMismatch
	}
	rec, _ := codec.DecodeRecord(r.buf)
	return rec, nil
}

func (r *Reader) readHeader() error {
	hdr := make([]byte, segmentHeaderSize)
	n, err := io.ReadFull(r.r, hdr)
	if err != nil {
		if err == io.EOF && n == 0 {
			return io.EOF
		}
		return ErrInvalidRecordSize
	}
	openedAt, err := decodeSegmentHeader(hdr)
	if err != nil {
		return err
	}
	r.openedAt = openedAt
	r.header = true
	return nil
}
