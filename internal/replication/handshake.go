package replication

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ehrlich-b/go-kvstore/internal/resp"
)

// HandshakeState is a step in the replica-side bootstrap sequence: PING,
// REPLCONF listening-port, REPLCONF capa, PSYNC. The
// iota-enum-with-explicit-transitions shape generalizes a per-tag
// completion-state pattern to handshake progress.
type HandshakeState int

const (
	HandshakeNotStarted HandshakeState = iota
	HandshakePingSent
	HandshakePortSent
	HandshakeCapaSent
	HandshakePsyncSent
	HandshakeCompleted
)

// Handshake drives a replica's connection to its primary through the fixed
// PING -> REPLCONF listening-port -> REPLCONF capa -> PSYNC sequence.
type Handshake struct {
	state         HandshakeState
	listeningPort int

	masterReplID string
	masterOffset int64
}

// NewHandshake creates a handshake driver that will advertise listeningPort
// to the primary.
func NewHandshake(listeningPort int) *Handshake {
	return &Handshake{listeningPort: listeningPort}
}

// State returns the handshake's current step.
func (h *Handshake) State() HandshakeState {
	return h.state
}

// Done reports whether the handshake has reached PSYNC completion; the
// caller should then switch the connection into streaming-apply mode.
func (h *Handshake) Done() bool {
	return h.state == HandshakeCompleted
}

// MasterReplID returns the primary's replication ID, valid once Done.
func (h *Handshake) MasterReplID() string {
	return h.masterReplID
}

// MasterOffset returns the offset the primary reported at FULLRESYNC time,
// valid once Done.
func (h *Handshake) MasterOffset() int64 {
	return h.masterOffset
}

// Start returns the first command to send (PING) and advances the state.
func (h *Handshake) Start() []byte {
	h.state = HandshakePingSent
	return resp.EncodeArray([]byte("PING"))
}

// Advance consumes the reply to the command most recently sent and returns
// the next command to send. When the handshake reaches HandshakeCompleted,
// next is nil: PSYNC's reply is followed by a raw RDB payload, not another
// command, and the caller must switch to reading that payload directly.
func (h *Handshake) Advance(reply resp.Frame) (next []byte, err error) {
	switch h.state {
	case HandshakePingSent:
		if reply.Type != resp.TypeSimpleString || !strings.EqualFold(reply.Str, "PONG") {
			return nil, fmt.Errorf("replication: expected +PONG, got %+v", reply)
		}
		h.state = HandshakePortSent
		return resp.EncodeArray([]byte("REPLCONF"), []byte("listening-port"), []byte(strconv.Itoa(h.listeningPort))), nil

	case HandshakePortSent:
		if !isOK(reply) {
			return nil, fmt.Errorf("replication: expected +OK for listening-port, got %+v", reply)
		}
		h.state = HandshakeCapaSent
		return resp.EncodeArray([]byte("REPLCONF"), []byte("capa"), []byte("psync2")), nil

	case HandshakeCapaSent:
		if !isOK(reply) {
			return nil, fmt.Errorf("replication: expected +OK for capa, got %+v", reply)
		}
		h.state = HandshakePsyncSent
		return resp.EncodeArray([]byte("PSYNC"), []byte("?"), []byte("-1")), nil

	case HandshakePsyncSent:
		replID, offset, err := parseFullResync(reply)
		if err != nil {
			return nil, err
		}
		h.masterReplID = replID
		h.masterOffset = offset
		h.state = HandshakeCompleted
		return nil, nil

	default:
		return nil, fmt.Errorf("replication: Advance called in terminal state %d", h.state)
	}
}

func isOK(f resp.Frame) bool {
	return f.Type == resp.TypeSimpleString && strings.EqualFold(f.Str, "OK")
}

// parseFullResync parses a "+FULLRESYNC <replid> <offset>" reply.
func parseFullResync(f resp.Frame) (replID string, offset int64, err error) {
	if f.Type != resp.TypeSimpleString {
		return "", 0, fmt.Errorf("replication: expected simple string for FULLRESYNC, got %+v", f)
	}
	fields := strings.Fields(f.Str)
	if len(fields) != 3 || !strings.EqualFold(fields[0], "FULLRESYNC") {
		return "", 0, fmt.Errorf("replication: malformed FULLRESYNC reply %q", f.Str)
	}
	n, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("replication: malformed FULLRESYNC offset %q", fields[2])
	}
	return fields[1], n, nil
}
