package mdg

import (
	"bufio"
	"io"

	"github.com/yanun0323/errors"

	"tob/internal/feed"
	"tob/internal/itch"
)

// CaptureWriter writes length-prefixed ITCH frames, the format read by
// feed.Reader and streamed by the replay tool.
type CaptureWriter struct {
	w     *bufio.Writer
	buf   []byte
	count int
}

func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{w: bufio.NewWriterSize(w, 64<<10), buf: make([]byte, 0, 64)}
}

// Write encodes m and appends it as one frame.
func (c *CaptureWriter) Write(m itch.Message) error {
	frame, err := feed.AppendFrame(c.buf[:0], itch.Encode(nil, m))
	if err != nil {
		return err
	}
	c.buf = frame
	if _, err := c.w.Write(frame); err != nil {
		return errors.Wrap(err, "write capture frame")
	}
	c.count++
	return nil
}

// Count returns the number of frames written.
func (c *CaptureWriter) Count() int {
	return c.count
}

func (c *CaptureWriter) Flush() error {
	return c.w.Flush()
}
