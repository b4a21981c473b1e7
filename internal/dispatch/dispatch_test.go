package dispatch

import (
	"testing"

	"github.com/ehrlich-b/go-kvstore/internal/config"
	"github.com/ehrlich-b/go-kvstore/internal/obs"
	"github.com/ehrlich-b/go-kvstore/internal/replication"
	"github.com/ehrlich-b/go-kvstore/internal/resp"
	"github.com/ehrlich-b/go-kvstore/internal/store"
	"github.com/stretchr/testify/require"
)

func fixedClock(ms uint64) store.Clock {
	return func() uint64 { return ms }
}

func newPrimaryDispatcher(t *testing.T) (*Dispatcher, *replication.Engine) {
	t.Helper()
	ks := store.New(32, fixedClock(0))
	e := replication.NewEngine()
	d := New(ks, config.Default(), replication.RolePrimary, e, obs.NoOpObserver{})
	return d, e
}

func decodeRequest(t *testing.T, parts ...string) (resp.Frame, []byte) {
	t.Helper()
	elems := make([][]byte, len(parts))
	for i, p := range parts {
		elems[i] = []byte(p)
	}
	raw := resp.EncodeArray(elems...)
	frame, n, err := resp.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, len(raw), n)
	return frame, raw
}

func TestPing(t *testing.T) {
	d, _ := newPrimaryDispatcher(t)
	frame, raw := decodeRequest(t, "PING")
	res := d.Dispatch(1, "", false, raw, frame, 0)
	require.Equal(t, []byte("+PONG\r\n"), res.Reply)
}

func TestUnknownCommand(t *testing.T) {
	d, _ := newPrimaryDispatcher(t)
	frame, raw := decodeRequest(t, "BOGUS")
	res := d.Dispatch(1, "", false, raw, frame, 0)
	require.Equal(t, []byte("-ERR unknown command\r\n"), res.Reply)
}

func TestWrongArity(t *testing.T) {
	d, _ := newPrimaryDispatcher(t)
	frame, raw := decodeRequest(t, "GET")
	res := d.Dispatch(1, "", false, raw, frame, 0)
	require.Equal(t, []byte("-ERR wrong number of arguments\r\n"), res.Reply)
}

func TestSetGetRoundTrip(t *testing.T) {
	d, _ := newPrimaryDispatcher(t)

	frame, raw := decodeRequest(t, "SET", "foo", "bar")
	res := d.Dispatch(1, "", false, raw, frame, 0)
	require.Equal(t, resp.RespOK, res.Reply)
	require.True(t, res.Propagate, "SET on a primary must be propagated")

	frame, raw = decodeRequest(t, "GET", "foo")
	res = d.Dispatch(1, "", false, raw, frame, 0)
	require.Equal(t, resp.EncodeBulkString([]byte("bar")), res.Reply)
	require.False(t, res.Propagate, "GET is not a write")
}

func TestGetMissingKeyReturnsNullBulk(t *testing.T) {
	d, _ := newPrimaryDispatcher(t)
	frame, raw := decodeRequest(t, "GET", "missing")
	res := d.Dispatch(1, "", false, raw, frame, 0)
	require.Equal(t, resp.EncodeNullBulk(), res.Reply)
}

func TestDelAlwaysRepliesOne(t *testing.T) {
	d, _ := newPrimaryDispatcher(t)
	frame, raw := decodeRequest(t, "DEL", "never-set")
	res := d.Dispatch(1, "", false, raw, frame, 0)
	require.Equal(t, resp.EncodeInteger(1), res.Reply)
}

func TestConfigGetDir(t *testing.T) {
	d, _ := newPrimaryDispatcher(t)
	frame, raw := decodeRequest(t, "CONFIG", "GET", "dir")
	res := d.Dispatch(1, "", false, raw, frame, 0)
	require.Equal(t, resp.EncodeArray([]byte("dir"), []byte(".")), res.Reply)
}

func TestConfigGetUnknownParam(t *testing.T) {
	d, _ := newPrimaryDispatcher(t)
	frame, raw := decodeRequest(t, "CONFIG", "GET", "maxmemory")
	res := d.Dispatch(1, "", false, raw, frame, 0)
	require.Equal(t, []byte("-ERR Unknown CONFIG parameter\r\n"), res.Reply)
}

func TestWaitRoleViolationOnReplica(t *testing.T) {
	ks := store.New(32, fixedClock(0))
	d := New(ks, config.Default(), replication.RoleReplica, nil, obs.NoOpObserver{})
	frame, raw := decodeRequest(t, "WAIT", "1", "100")
	res := d.Dispatch(1, "", false, raw, frame, 0)
	require.Equal(t, []byte("-ERR WAIT not supported in slave mode\r\n"), res.Reply)
}

func TestWaitSatisfiedImmediately(t *testing.T) {
	d, e := newPrimaryDispatcher(t)
	e.AddReplica(2, "127.0.0.1:1")
	e.Propagate(make([]byte, 10))
	e.Ack(2, 10)

	frame, raw := decodeRequest(t, "WAIT", "1", "1000")
	res := d.Dispatch(1, "", false, raw, frame, 0)
	require.Equal(t, resp.EncodeInteger(1), res.Reply)
	require.False(t, res.BroadcastGetAck)
}

func TestWaitPendingBroadcastsGetAck(t *testing.T) {
	d, e := newPrimaryDispatcher(t)
	e.AddReplica(2, "127.0.0.1:1")
	e.Propagate(make([]byte, 10))
	// no ack yet

	frame, raw := decodeRequest(t, "WAIT", "1", "1000")
	res := d.Dispatch(1, "", false, raw, frame, 0)
	require.Nil(t, res.Reply)
	require.True(t, res.BroadcastGetAck)
	require.True(t, e.HasPendingWaiters())
}

func TestPsyncRegistersReplicaAndReturnsSnapshot(t *testing.T) {
	d, e := newPrimaryDispatcher(t)
	frame, raw := decodeRequest(t, "PSYNC", "?", "-1")
	res := d.Dispatch(5, "127.0.0.1:9999", false, raw, frame, 0)

	require.Contains(t, string(res.Reply), "+FULLRESYNC "+e.ReplID()+" 0\r\n")
	require.NotEmpty(t, res.SnapshotPayload)
	require.Len(t, e.Replicas(), 1)
}

func TestPsyncOnReplicaIsRoleViolation(t *testing.T) {
	ks := store.New(32, fixedClock(0))
	d := New(ks, config.Default(), replication.RoleReplica, nil, obs.NoOpObserver{})
	frame, raw := decodeRequest(t, "PSYNC", "?", "-1")
	res := d.Dispatch(1, "", false, raw, frame, 0)
	require.Contains(t, string(res.Reply), "not supported in slave mode")
}

func TestReplicaSuppressesReplyForNonUpstreamCommands(t *testing.T) {
	ks := store.New(32, fixedClock(0))
	d := New(ks, config.Default(), replication.RoleReplica, nil, obs.NoOpObserver{})

	frame, raw := decodeRequest(t, "SET", "k", "v")
	res := d.Dispatch(1, "", true, raw, frame, 0)
	require.Nil(t, res.Reply, "upstream-applied SET has no reply")

	val, ok := ks.Get([]byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("v"), val)
}

func TestReplicaKeepsReplyForUpstreamReplyCommands(t *testing.T) {
	ks := store.New(32, fixedClock(0))
	d := New(ks, config.Default(), replication.RoleReplica, nil, obs.NoOpObserver{})

	frame, raw := decodeRequest(t, "REPLCONF", "GETACK", "*")
	res := d.Dispatch(1, "", true, raw, frame, 0)
	require.NotNil(t, res.Reply, "REPLCONF is flagged reply-to-upstream")
}

func TestReplicaGetAckReportsByteAccounting(t *testing.T) {
	ks := store.New(32, fixedClock(0))
	d := New(ks, config.Default(), replication.RoleReplica, nil, obs.NoOpObserver{})

	getAckFrame, getAckRaw := decodeRequest(t, "REPLCONF", "GETACK", "*")
	res := d.Dispatch(1, "", true, getAckRaw, getAckFrame, 0)
	require.Equal(t, resp.EncodeArray([]byte("REPLCONF"), []byte("ACK"), []byte(itoa(len(getAckRaw)))), res.Reply)
	require.Equal(t, int64(len(getAckRaw)), d.ProcessedFromMaster())

	setFrame, setRaw := decodeRequest(t, "SET", "k", "v")
	d.Dispatch(1, "", true, setRaw, setFrame, 0)
	require.Equal(t, int64(len(getAckRaw)+len(setRaw)), d.ProcessedFromMaster())
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
