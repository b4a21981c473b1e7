package constants

import "time"

// Keyspace defaults
const (
	// KeyspaceCapacity is the fixed number of slots in the open-addressed
	// hash table. There is no growth; SET beyond this capacity is refused
	// with a recoverable -ERR response.
	KeyspaceCapacity = 32
)

// Network defaults
const (
	// MinPort and MaxPort bound the accepted --port range.
	MinPort = 1024
	MaxPort = 65535

	// DefaultPort is used when no --port flag is supplied.
	DefaultPort = 6379
)

// Replication constants
const (
	// ReplIDLength is the length in hex characters of the primary's replid.
	ReplIDLength = 40

	// EmptyRDBPayload is the fixed 10-byte snapshot the primary emits during
	// replica bootstrap: "REDIS0007" followed by the RDB EOF opcode.
	EmptyRDBPayload = "REDIS0007\xff"

	// WaitSweepInterval is the poll timeout used while waiting-client
	// records exist.
	WaitSweepInterval = 100 * time.Millisecond
)

// Connection buffer sizing
const (
	// InitialReadBufferSize is the size of a new connection's per-connection
	// read buffer before it needs to grow.
	InitialReadBufferSize = 4096

	// MaxInlineBulkSize is a 16 KiB bulk-payload size. The event loop does
	// not consult it: every read goes through a pooled scratch buffer of
	// InitialReadBufferSize bytes and is appended to the connection buffer.
	MaxInlineBulkSize = 16 * 1024
)
