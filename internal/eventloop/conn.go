package eventloop

import (
	"github.com/ehrlich-b/go-kvstore/internal/constants"
	"github.com/ehrlich-b/go-kvstore/internal/replication"
)

// connKind distinguishes the three roles a registered descriptor can play.
type connKind int

const (
	connListener connKind = iota
	connClient
	connUpstream
)

// conn is the event loop's per-descriptor bookkeeping. The read buffer holds
// bytes already read from the socket but not yet consumed by the framer.
// Writes use blocking send semantics directly against the fd (per the
// shared-resource policy: small buffers, trusted peers), so there is no
// per-connection write queue.
type conn struct {
	fd   int
	id   uint64
	kind connKind
	addr string

	readBuf []byte

	// handshake drives a replica's bootstrap against its primary; nil for
	// every connection except connUpstream, and nil again once the
	// FULLRESYNC reply has been parsed.
	handshake *replication.Handshake

	// awaitingSnapshot is set once a replica's handshake reaches
	// FULLRESYNC: the next bytes are a raw bulk-string snapshot, not a
	// framed command, so the normal decoder must not run until it clears.
	awaitingSnapshot   bool
	snapshotHeaderDone bool
	snapshotRemaining  int64
}

func newConn(fd int, id uint64, kind connKind, addr string) *conn {
	return &conn{
		fd:      fd,
		id:      id,
		kind:    kind,
		addr:    addr,
		readBuf: make([]byte, 0, constants.InitialReadBufferSize),
	}
}

// appendRead grows the connection's unconsumed-bytes buffer with freshly
// read data.
func (c *conn) appendRead(b []byte) {
	c.readBuf = append(c.readBuf, b...)
}

// consumeRead drops the first n bytes of the unconsumed-bytes buffer,
// shifting the remainder down so the buffer does not grow unbounded across
// many small frames.
func (c *conn) consumeRead(n int) {
	c.readBuf = append(c.readBuf[:0], c.readBuf[n:]...)
}
