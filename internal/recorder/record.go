package recorder

import (
	"bytes"
	"encoding/binary"

	"github.com/yanun0323/errors"

	"tob/internal/codec"
)

// Each segment starts with a fixed header followed by back-to-back export records.
const (
	segmentVersion    uint16 = 1
	segmentHeaderSize        = 16
	recordSize               = codec.RecordSize
)

var segmentMagic = [4]byte{'T', 'O', 'B', 'R'}

var (
	ErrInvalidMagic          = errors.New("recorder invalid magic")
	ErrUnsupportedSegmentVer = errors.New("recorder unsupported segment version")
	ErrInvalidRecordSize     = errors.New("recorder invalid record size")
	ErrChecksumMismatch      = errors.New("recorder checksum mismatch")
	ErrTruncatedRecord       = errors.New("recorder truncated record")
)

func encodeSegmentHeader(dst []byte, openedAt int64) {
	_ = dst[segmentHeaderSize-1]
	copy(dst[0:4], segmentMagic[:])
	binary.LittleEndian.PutUint16(dst[4:6], segmentVersion)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(recordSize))
	binary.LittleEndian.PutUint64(dst[8:16], uint64(openedAt))
}

func decodeSegmentHeader(src []byte) (int64, error) {
	if len(src) < segmentHeaderSize {
		return 0, ErrInvalidRecordSize
	}
	if !bytes.Equal(src[0:4], segmentMagic[:]) {
		return 0, ErrInvalidMagic
	}
	if ver := binary.LittleEndian.Uint16(src[4:6]); ver != segmentVersion {
		return 0, ErrUnsupportedSegmentVer
	}
	if size := binary.LittleEndian.Uint16(src[6:8]); size != recordSize {
		return 0, ErrInvalidRecordSize
	}
	return int64(binary.LittleEndian.Uint64(src[8:16])), nil
}
