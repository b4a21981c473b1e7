// Package replication implements the primary side of replication: the
// replica registry, write-command propagation, REPLCONF ACK tracking, and
// the WAIT barrier. The handshake driver a replica uses to bootstrap itself
// against a primary lives in handshake.go.
//
// The state machine shape (an iota-enum of named states with explicit
// transitions, guarded by a single owner goroutine) follows the same
// completion-state pattern used elsewhere in this codebase, adapted from
// per-tag I/O ownership to per-replica handshake progress.
package replication

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Role identifies whether a server is acting as a primary or a replica.
type Role int

const (
	RolePrimary Role = iota
	RoleReplica
)

func (r Role) String() string {
	if r == RoleReplica {
		return "slave"
	}
	return "master"
}

// ReplicaState tracks where a registered replica is in its post-PSYNC
// lifecycle.
type ReplicaState int

const (
	ReplicaStateOnline ReplicaState = iota
)

// Replica is the primary's bookkeeping record for one connected replica.
type Replica struct {
	ConnID        uint64
	Addr          string
	ListeningPort int
	State         ReplicaState
	AckOffset     int64
}

// Engine is the primary-side replication coordinator: one per server
// process. It is only ever touched from the single event-loop goroutine, so
// it carries no internal locking.
type Engine struct {
	replID string
	offset int64

	// order is the insertion order of connection IDs, preserved so
	// propagation and INFO output list replicas in the order they
	// registered.
	order       []uint64
	replicas    map[uint64]*Replica
	pendingPort map[uint64]int

	waiters []*waiter
}

// waiter is one client blocked in WAIT, tracked until it is satisfied or its
// timeout sweep fires.
type waiter struct {
	connID       uint64
	targetCount  int
	targetOffset int64
	deadlineMs   int64
}

// NewEngine creates a primary-role replication engine with a freshly
// generated 40-character hex replication ID.
func NewEngine() *Engine {
	return &Engine{
		replID:      generateReplID(),
		replicas:    make(map[uint64]*Replica),
		pendingPort: make(map[uint64]int),
	}
}

func generateReplID() string {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read on the standard reader never fails in practice;
		// a zero-filled ID is still a valid (if predictable) 40-char hex
		// string and keeps startup from panicking.
		return fmt.Sprintf("%040x", 0)
	}
	return hex.EncodeToString(buf)
}

// ReplID returns the primary's replication ID.
func (e *Engine) ReplID() string {
	return e.replID
}

// Offset returns the current master replication offset: the number of
// write-command bytes propagated so far.
func (e *Engine) Offset() int64 {
	return e.offset
}

// RegisterPendingPort records a replica's advertised listening port before
// it has completed PSYNC (REPLCONF listening-port arrives before PSYNC in
// the handshake), keyed by connection ID so it can be attached once the
// replica is added.
func (e *Engine) RegisterPendingPort(connID uint64, port int) {
	if r, ok := e.replicas[connID]; ok {
		r.ListeningPort = port
		return
	}
	e.pendingPort[connID] = port
}

// AddReplica registers a newly PSYNC'd connection as a replica, returning
// the FULLRESYNC response line's fields. The caller is responsible for
// writing "+FULLRESYNC <replid> <offset>\r\n" followed by the snapshot
// payload.
func (e *Engine) AddReplica(connID uint64, addr string) (replID string, offset int64) {
	r := &Replica{ConnID: connID, Addr: addr, State: ReplicaStateOnline, AckOffset: 0}
	if port, ok := e.pendingPort[connID]; ok {
		r.ListeningPort = port
		delete(e.pendingPort, connID)
	}
	e.replicas[connID] = r
	e.order = append(e.order, connID)
	return e.replID, e.offset
}

// RemoveReplica deregisters a replica, e.g. on connection close. There is
// no reconnection handling; once gone, a replica is simply forgotten.
func (e *Engine) RemoveReplica(connID uint64) {
	delete(e.replicas, connID)
	for i, id := range e.order {
		if id == connID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Replicas returns the registered replicas in registration order.
func (e *Engine) Replicas() []*Replica {
	out := make([]*Replica, 0, len(e.order))
	for _, id := range e.order {
		if r, ok := e.replicas[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Propagate advances the master offset by len(cmd) and returns the ordered
// list of replica connection IDs that should receive cmd's raw bytes, in
// FIFO registration order.
func (e *Engine) Propagate(cmd []byte) []uint64 {
	e.offset += int64(len(cmd))
	return append([]uint64(nil), e.order...)
}

// Ack records a replica's REPLCONF ACK offset.
func (e *Engine) Ack(connID uint64, offset int64) {
	if r, ok := e.replicas[connID]; ok {
		r.AckOffset = offset
	}
}

// AckedCount returns how many registered replicas have acknowledged at
// least targetOffset.
func (e *Engine) AckedCount(targetOffset int64) int {
	n := 0
	for _, r := range e.replicas {
		if r.AckOffset >= targetOffset {
			n++
		}
	}
	return n
}

// WaitResult is the resolution of one WAIT call, produced by SweepWaiters
// once it is either satisfied or has timed out.
type WaitResult struct {
	ConnID    uint64
	Count     int
	Satisfied bool
}

// RegisterWait enqueues a pending WAIT call against the offset the master
// had reached at the moment WAIT was issued: replication that happens
// afterward does not count toward satisfying it.
func (e *Engine) RegisterWait(connID uint64, targetCount int, nowMs, timeoutMs int64) {
	e.waiters = append(e.waiters, &waiter{
		connID:       connID,
		targetCount:  targetCount,
		targetOffset: e.offset,
		deadlineMs:   nowMs + timeoutMs,
	})
}

// HasPendingWaiters reports whether any WAIT call is still outstanding,
// which the event loop uses to decide whether its periodic sweep timer
// needs to keep firing.
func (e *Engine) HasPendingWaiters() bool {
	return len(e.waiters) > 0
}

// SweepWaiters resolves any waiter that has either reached its target
// replica-ack count or hit its deadline, returning one WaitResult per
// resolved waiter. Unresolved waiters remain pending for the next sweep.
func (e *Engine) SweepWaiters(nowMs int64) []WaitResult {
	if len(e.waiters) == 0 {
		return nil
	}
	var results []WaitResult
	remaining := e.waiters[:0]
	for _, w := range e.waiters {
		acked := e.AckedCount(w.targetOffset)
		switch {
		case acked >= w.targetCount:
			results = append(results, WaitResult{ConnID: w.connID, Count: acked, Satisfied: true})
		case nowMs >= w.deadlineMs:
			results = append(results, WaitResult{ConnID: w.connID, Count: acked, Satisfied: false})
		default:
			remaining = append(remaining, w)
		}
	}
	e.waiters = remaining
	return results
}
