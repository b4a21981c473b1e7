package rdb

import "github.com/ehrlich-b/go-kvstore/internal/constants"

// EmptySnapshot returns the fixed 10-byte empty snapshot payload the primary
// sends to a newly registered replica during PSYNC bootstrap: the bare
// 9-byte header followed directly by the EOF opcode, with no
// database-selector, hash-size hint, or checksum. The primary never
// performs real persistence; this is the only snapshot it ever emits.
func EmptySnapshot() []byte {
	return []byte(constants.EmptyRDBPayload)
}
