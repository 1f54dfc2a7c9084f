package codec

import "github.com/sigurn/crc16"

// CRC-16/CCITT-FALSE: poly 0x1021, init 0xFFFF, no reflection.
var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// CRC16 computes the record checksum.
func CRC16(b []byte) uint16 {
	return crc16.Checksum(b, crcTable)
}
