package rdb

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// Special-form string encodings (low 6 bits of a 0xC0-class length byte).
const (
	specialInt8  = 0
	specialInt16 = 1
	specialInt32 = 2
	specialLZF   = 3
)

// errLZFUnsupported is returned when a string uses LZF compression (0xC3),
// which this reader does not implement.
var errLZFUnsupported = fmt.Errorf("rdb: LZF-compressed strings are not supported")

// readString decodes a string-encoded value starting at buf[0]: either a
// size-encoded length followed by that many raw bytes, or one of the
// int-as-string special forms (0xC0/0xC1/0xC2, 1/2/4 little-endian bytes).
func readString(buf []byte) (value []byte, consumed int, err error) {
	n, headerLen, kind, err := readLength(buf)
	if err != nil {
		return nil, 0, err
	}

	if kind != lengthKindSpecial {
		total := headerLen + int(n)
		if len(buf) < total {
			return nil, 0, fmt.Errorf("rdb: truncated string payload")
		}
		out := make([]byte, n)
		copy(out, buf[headerLen:total])
		return out, total, nil
	}

	switch n {
	case specialInt8:
		if len(buf) < headerLen+1 {
			return nil, 0, fmt.Errorf("rdb: truncated int8 string")
		}
		v := int8(buf[headerLen])
		return []byte(strconv.Itoa(int(v))), headerLen + 1, nil
	case specialInt16:
		if len(buf) < headerLen+2 {
			return nil, 0, fmt.Errorf("rdb: truncated int16 string")
		}
		v := int16(binary.LittleEndian.Uint16(buf[headerLen : headerLen+2]))
		return []byte(strconv.Itoa(int(v))), headerLen + 2, nil
	case specialInt32:
		if len(buf) < headerLen+4 {
			return nil, 0, fmt.Errorf("rdb: truncated int32 string")
		}
		v := int32(binary.LittleEndian.Uint32(buf[headerLen : headerLen+4]))
		return []byte(strconv.Itoa(int(v))), headerLen + 4, nil
	case specialLZF:
		return nil, 0, errLZFUnsupported
	default:
		return nil, 0, fmt.Errorf("rdb: unknown special string form %d", n)
	}
}
