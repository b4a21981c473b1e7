package dispatch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ehrlich-b/go-kvstore/internal/kverrors"
	"github.com/ehrlich-b/go-kvstore/internal/rdb"
	"github.com/ehrlich-b/go-kvstore/internal/replication"
	"github.com/ehrlich-b/go-kvstore/internal/resp"
)

// SetReplicaMasterState records the replid and offset a replica learned at
// FULLRESYNC time, once its handshake completes. INFO reports
// masterOffset + ProcessedFromMaster as master_repl_offset.
func (d *Dispatcher) SetReplicaMasterState(replID string, offset int64) {
	d.replicaMasterReplID = replID
	d.replicaMasterOffset = offset
}

// SweepWaiters resolves due WAIT calls and reports each outcome to the
// observer, returning the results for the event loop to reply to.
func (d *Dispatcher) SweepWaiters(nowMs int64) []replication.WaitResult {
	if d.Engine == nil {
		return nil
	}
	results := d.Engine.SweepWaiters(nowMs)
	for _, r := range results {
		d.Observer.ObserveWaitOutcome(r.Satisfied)
	}
	return results
}

func (d *Dispatcher) handleInfo(args [][]byte) Result {
	var replID string
	var offset int64
	if d.Engine != nil {
		replID = d.Engine.ReplID()
		offset = d.Engine.Offset()
	} else {
		replID = d.replicaMasterReplID
		offset = d.replicaMasterOffset + d.replicaOffset
	}
	body := fmt.Sprintf("# Replication\r\nrole:%s\r\nmaster_replid:%s\r\nmaster_repl_offset:%d\r\n",
		d.Role.String(), replID, offset)
	return Result{Reply: resp.EncodeBulkString([]byte(body))}
}

func (d *Dispatcher) handleReplConf(connID uint64, args [][]byte) Result {
	sub := strings.ToLower(string(args[1]))
	switch sub {
	case "listening-port":
		port, err := strconv.Atoi(string(args[2]))
		if err != nil {
			return errorResult(kverrors.ErrCodeBadConfig, "invalid listening port")
		}
		if d.Engine != nil {
			d.Engine.RegisterPendingPort(connID, port)
		}
		return Result{Reply: resp.RespOK}

	case "capa":
		return Result{Reply: resp.RespOK}

	case "ack":
		if len(args) < 3 {
			return errorResult(kverrors.ErrCodeWrongArity, "wrong number of arguments")
		}
		offset, err := strconv.ParseInt(string(args[2]), 10, 64)
		if err != nil {
			return errorResult(kverrors.ErrCodeBadConfig, "invalid offset")
		}
		if d.Engine != nil {
			d.Engine.Ack(connID, offset)
			d.Observer.ObserveReplicaAck()
		}
		return Result{} // one-way; the primary never replies to REPLCONF ACK

	case "getack":
		return Result{Reply: resp.EncodeArray(
			[]byte("REPLCONF"), []byte("ACK"), []byte(strconv.FormatInt(d.replicaOffset, 10)),
		)}

	default:
		return errorResult(kverrors.ErrCodeUnknownCommand, fmt.Sprintf("unknown REPLCONF option %q", sub))
	}
}

// handlePsync registers connID as a replica and returns the FULLRESYNC
// reply together with the empty snapshot payload to stream right after it.
func (d *Dispatcher) handlePsync(connID uint64, peerAddr string, args [][]byte) Result {
	replID, offset := d.Engine.AddReplica(connID, peerAddr)
	reply := resp.EncodeSimpleString(fmt.Sprintf("FULLRESYNC %s %d", replID, offset))

	snapshot := rdb.EmptySnapshot()
	payload := append(resp.EncodeRawBulkHeader(len(snapshot)), snapshot...)

	return Result{Reply: reply, SnapshotPayload: payload}
}

// handleWait implements the three-step WAIT protocol: reply immediately if
// enough replicas already acked the offset as of this call, otherwise
// register a waiter against that offset and ask the event loop to solicit
// fresh ACKs.
func (d *Dispatcher) handleWait(connID uint64, args [][]byte, nowMs int64) Result {
	n, err1 := strconv.Atoi(string(args[1]))
	timeoutMs, err2 := strconv.ParseInt(string(args[2]), 10, 64)
	if err1 != nil || n < 0 || err2 != nil || timeoutMs < 0 {
		return errorResult(kverrors.ErrCodeWrongArity, "wrong number of arguments")
	}

	targetOffset := d.Engine.Offset()
	if acked := d.Engine.AckedCount(targetOffset); acked >= n {
		d.Observer.ObserveWaitOutcome(true)
		return Result{Reply: resp.EncodeInteger(int64(acked))}
	}

	d.Engine.RegisterWait(connID, n, nowMs, timeoutMs)
	return Result{BroadcastGetAck: true}
}
