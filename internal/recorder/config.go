package recorder

import (
	"time"

	"github.com/yanun0323/errors"

	"tob/pkg/exception"
)

const (
	defaultSegmentMaxBytes int64 = 1 << 30
	defaultQueueSize             = 4096
	defaultBufferSize            = 256 * 1024
	defaultFilePrefix            = "tob"
	fileSuffix                   = ".rec"
)

var defaultSegmentMaxDuration = 5 * time.Minute

// Config controls the export writer. Segments rotate on size or age,
// whichever comes first; a zero duration disables age rotation.
type Config struct {
	Dir                string
	SegmentMaxBytes    int64
	SegmentMaxDuration time.Duration
	QueueSize          int
	BufferSize         int
	FilePrefix         string
	FlushInterval      time.Duration
	SyncInterval       time.Duration
}

// DefaultConfig returns a baseline configuration for the export writer.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:                dir,
		SegmentMaxBytes:    defaultSegmentMaxBytes,
		SegmentMaxDuration: defaultSegmentMaxDuration,
		QueueSize:          defaultQueueSize,
		BufferSize:         defaultBufferSize,
		FilePrefix:         defaultFilePrefix,
	}
}

func (c Config) withDefaults() Config {
	if c.SegmentMaxBytes == 0 {
		c.SegmentMaxBytes = defaultSegmentMaxBytes
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the configuration is usable. Every failure wraps
// exception.ErrConfigInvalid.
func (c Config) Validate() error {
	switch {
	case c.Dir == "":
		return errors.Wrap(exception.ErrConfigInvalid, "export dir is empty")
	case c.SegmentMaxBytes < segmentHeaderSize+recordSize:
		return errors.Wrapf(exception.ErrConfigInvalid, "export segment of %d bytes cannot hold one record", c.SegmentMaxBytes)
	case c.QueueSize <= 0:
		return errors.Wrap(exception.ErrConfigInvalid, "export queue size must be > 0")
	case c.BufferSize < recordSize:
		return errors.Wrapf(exception.ErrConfigInvalid, "export buffer must hold at least %d bytes", recordSize)
	case c.FilePrefix == "":
		return errors.Wrap(exception.ErrConfigInvalid, "export file prefix is empty")
	case c.FlushInterval < 0 || c.SyncInterval < 0:
		return errors.Wrap(exception.ErrConfigInvalid, "export flush and sync intervals must be >= 0")
	}
	return nil
}

// RecordsPerSegment is the number of whole records a segment can carry.
func (c Config) RecordsPerSegment() int64 {
	if c.SegmentMaxBytes < segmentHeaderSize {
		return 0
	}
	return (c.SegmentMaxBytes - segmentHeaderSize) / recordSize
}
