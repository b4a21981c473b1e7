package dispatch

// Result is everything the event loop needs to act on after a frame is
// dispatched. Dispatch never touches a socket directly; it only reports what
// happened so the caller can write bytes, fan out propagation, and decide
// whether to keep the connection open.
type Result struct {
	// Reply holds the bytes to write back on the connection the frame
	// arrived on. Nil means nothing should be written: a replica-applied
	// upstream command without the reply-to-upstream flag, a REPLCONF ACK
	// (which is one-way), or a WAIT that was registered to be answered
	// later by the sweep. A write on a primary client connection still
	// gets a reply.
	Reply []byte

	// SnapshotPayload is non-nil only immediately after a successful PSYNC:
	// the raw snapshot bytes to send right after Reply, framed by
	// resp.EncodeRawBulkHeader but with no trailing CRLF.
	SnapshotPayload []byte

	// Propagate is true when this command mutated the keyspace on a
	// primary and its raw bytes must be fanned out to every registered
	// replica via the replication engine.
	Propagate bool

	// BroadcastGetAck is true when a just-registered WAIT needs
	// "REPLCONF GETACK *" sent to every replica so their next ACK reflects
	// an up-to-date offset. The event loop owns the actual writes since
	// Dispatch never touches a socket.
	BroadcastGetAck bool
}
