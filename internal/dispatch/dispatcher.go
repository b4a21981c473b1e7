package dispatch

import (
	"strings"
	"time"

	"github.com/ehrlich-b/go-kvstore/internal/config"
	"github.com/ehrlich-b/go-kvstore/internal/kverrors"
	"github.com/ehrlich-b/go-kvstore/internal/obs"
	"github.com/ehrlich-b/go-kvstore/internal/replication"
	"github.com/ehrlich-b/go-kvstore/internal/resp"
	"github.com/ehrlich-b/go-kvstore/internal/store"
)

// Dispatcher routes decoded frames to command handlers against a shared
// keyspace, and carries the bookkeeping that differs between a primary and
// a replica: the replication engine on a primary, and the
// processed-from-master accounting on a replica.
type Dispatcher struct {
	Keyspace *store.Keyspace
	Config   config.Config
	Role     replication.Role
	Engine   *replication.Engine // non-nil only when Role == replication.RolePrimary
	Observer obs.Observer

	// replica-side-only accounting (zero value is correct for a primary).
	replicaOffset       int64
	ackReportingEnabled bool
	replicaMasterReplID string
	replicaMasterOffset int64
}

// New creates a Dispatcher. engine must be non-nil when role is
// replication.RolePrimary and nil otherwise.
func New(ks *store.Keyspace, cfg config.Config, role replication.Role, engine *replication.Engine, observer obs.Observer) *Dispatcher {
	if observer == nil {
		observer = obs.NoOpObserver{}
	}
	return &Dispatcher{Keyspace: ks, Config: cfg, Role: role, Engine: engine, Observer: observer}
}

// ProcessedFromMaster returns the replica's running count of in-band command
// bytes consumed since ack reporting was enabled.
func (d *Dispatcher) ProcessedFromMaster() int64 {
	return d.replicaOffset
}

// Dispatch validates and executes one decoded frame. raw is the exact
// framed bytes the decoder consumed for this request, used both for
// propagation to replicas and for a replica's own offset accounting.
// connID and peerAddr identify the connection the frame arrived on;
// isUpstream is true only for a replica's connection back to its primary.
func (d *Dispatcher) Dispatch(connID uint64, peerAddr string, isUpstream bool, raw []byte, frame resp.Frame, nowMs int64) Result {
	args := frame.Args()
	if len(args) == 0 {
		return errorResult(kverrors.ErrCodeUnknownCommand, "unknown command")
	}

	name, spec, ok := lookupCommand(args[0])
	if !ok {
		d.Observer.ObserveCommand(0, false)
		return errorResult(kverrors.ErrCodeUnknownCommand, "unknown command")
	}
	if !checkArity(spec, len(args)) {
		d.Observer.ObserveCommand(0, false)
		return errorResult(kverrors.ErrCodeWrongArity, "wrong number of arguments")
	}
	if spec.primaryOnly && d.Role != replication.RolePrimary {
		d.Observer.ObserveCommand(0, false)
		return errorResult(kverrors.ErrCodeRoleViolation, name+" not supported in slave mode")
	}

	d.applyReplicaOffsetAccounting(isUpstream, name, args, raw)

	start := time.Now()
	var result Result
	switch name {
	case cmdPing:
		result = d.handlePing(args)
	case cmdEcho:
		result = d.handleEcho(args)
	case cmdSet:
		result = d.handleSet(args)
	case cmdGet:
		result = d.handleGet(args)
	case cmdDel:
		result = d.handleDel(args)
	case cmdKeys:
		result = d.handleKeys(args)
	case cmdConfig:
		result = d.handleConfig(args)
	case cmdInfo:
		result = d.handleInfo(args)
	case cmdReplConf:
		result = d.handleReplConf(connID, args)
	case cmdPsync:
		result = d.handlePsync(connID, peerAddr, args)
	case cmdWait:
		result = d.handleWait(connID, args, nowMs)
	}

	success := len(result.Reply) == 0 || result.Reply[0] != '-'
	d.Observer.ObserveCommand(uint64(time.Since(start).Nanoseconds()), success)

	if spec.write && d.Role == replication.RolePrimary {
		result.Propagate = true
	}

	// On a replica, only reply-to-upstream commands write back on the
	// upstream connection; every other upstream-applied command is silent.
	if d.Role == replication.RoleReplica && isUpstream && !spec.replyToUpstream {
		result.Reply = nil
	}

	return result
}

// applyReplicaOffsetAccounting implements the "increment before executing"
// rule: once ack reporting is enabled, every upstream command's framed byte
// length is added to the running offset before the command runs, and the
// REPLCONF GETACK that enables reporting counts itself too.
func (d *Dispatcher) applyReplicaOffsetAccounting(isUpstream bool, name string, args [][]byte, raw []byte) {
	if d.Role != replication.RoleReplica || !isUpstream {
		return
	}
	isGetAck := name == cmdReplConf && len(args) >= 2 && strings.EqualFold(string(args[1]), "getack")
	if d.ackReportingEnabled || isGetAck {
		d.replicaOffset += int64(len(raw))
	}
	if isGetAck {
		d.ackReportingEnabled = true
	}
}

func errorResult(code kverrors.ErrorCode, msg string) Result {
	err := kverrors.NewError("DISPATCH", code, msg)
	return Result{Reply: resp.EncodeError("ERR " + err.WireMessage())}
}
