package eventloop

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/go-kvstore/internal/bufpool"
	"github.com/ehrlich-b/go-kvstore/internal/constants"
	"github.com/ehrlich-b/go-kvstore/internal/dispatch"
	"github.com/ehrlich-b/go-kvstore/internal/logging"
	"github.com/ehrlich-b/go-kvstore/internal/replication"
	"github.com/ehrlich-b/go-kvstore/internal/resp"
)

// Loop is the single-threaded server loop: one poller, one listener, and a
// map of client (and, on a replica, upstream) connections, all mutated only
// between poller.Wait calls.
type Loop struct {
	poller     Poller
	listenerFd int

	conns    map[int]*conn
	byConnID map[uint64]*conn
	nextID   uint64

	dispatcher *dispatch.Dispatcher
	role       replication.Role
	logger     *logging.Logger
}

// New creates a Loop around an already-bound, non-blocking listener fd.
func New(listenerFd int, d *dispatch.Dispatcher, role replication.Role, logger *logging.Logger) (*Loop, error) {
	poller, err := NewPoller()
	if err != nil {
		return nil, err
	}
	if err := poller.Add(listenerFd, false); err != nil {
		poller.Close()
		return nil, fmt.Errorf("eventloop: registering listener: %w", err)
	}
	l := &Loop{
		poller:     poller,
		listenerFd: listenerFd,
		conns:      map[int]*conn{listenerFd: newConn(listenerFd, 0, connListener, "")},
		byConnID:   map[uint64]*conn{},
		dispatcher: d,
		role:       role,
		logger:     logger,
	}
	return l, nil
}

// RegisterUpstream adds a replica's connection to its primary, already
// connected and with its handshake started, so the loop drives it alongside
// ordinary client traffic.
func (l *Loop) RegisterUpstream(fd int, addr string, h *replication.Handshake) error {
	if err := l.poller.Add(fd, false); err != nil {
		return fmt.Errorf("eventloop: registering upstream: %w", err)
	}
	c := newConn(fd, l.allocConnID(), connUpstream, addr)
	c.handshake = h
	l.conns[fd] = c
	l.byConnID[c.id] = c
	return nil
}

func (l *Loop) allocConnID() uint64 {
	l.nextID++
	return l.nextID
}

// Run drives the loop until ctx is cancelled or a fatal error occurs.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		timeoutMs := -1
		if l.dispatcher.Engine != nil && l.dispatcher.Engine.HasPendingWaiters() {
			timeoutMs = int(constants.WaitSweepInterval / time.Millisecond)
		}

		events, err := l.poller.Wait(timeoutMs)
		if err != nil {
			return err
		}
		for _, ev := range events {
			l.handleEvent(ev)
		}
		if l.dispatcher.Engine != nil && l.dispatcher.Engine.HasPendingWaiters() {
			l.sweepWaiters()
		}
	}
}

func (l *Loop) handleEvent(ev Event) {
	c, ok := l.conns[ev.Fd]
	if !ok {
		return
	}
	if c.kind == connListener {
		l.acceptAll()
		return
	}
	if ev.HungUp {
		l.closeConn(c)
		return
	}
	if ev.Readable {
		l.handleReadable(c)
	}
}

// acceptAll accepts every pending connection on the listener, matching the
// loop contract of draining a readable fd until EAGAIN.
func (l *Loop) acceptAll() {
	for {
		fd, sa, err := unix.Accept(l.listenerFd)
		if err != nil {
			if err != unix.EAGAIN {
				l.logger.Warnf("accept failed: %v", err)
			}
			return
		}
		unix.SetNonblock(fd, true)
		addr := sockaddrString(sa)
		if err := l.poller.Add(fd, false); err != nil {
			l.logger.Warnf("registering accepted connection: %v", err)
			unix.Close(fd)
			continue
		}
		c := newConn(fd, l.allocConnID(), connClient, addr)
		l.conns[fd] = c
		l.byConnID[c.id] = c
	}
}

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3], a.Port)
	default:
		return ""
	}
}

// handleReadable drains fd into the connection's buffer and processes
// whatever whole frames (or, mid-handshake, whatever protocol step) that
// makes available.
func (l *Loop) handleReadable(c *conn) {
	buf := bufpool.Get(constants.InitialReadBufferSize)
	defer bufpool.Put(buf)
	for {
		n, err := unix.Read(c.fd, buf)
		if n > 0 {
			c.appendRead(buf[:n])
		}
		if err == unix.EAGAIN {
			break
		}
		if err != nil || n == 0 {
			l.closeConn(c)
			return
		}
		if n < len(buf) {
			break
		}
	}

	if c.kind == connUpstream && c.handshake != nil {
		if !l.driveHandshake(c) {
			return
		}
	}
	if c.awaitingSnapshot {
		if !l.consumeSnapshot(c) {
			return
		}
		if c.awaitingSnapshot {
			return
		}
	}

	l.processFrames(c)
}

// driveHandshake feeds one reply to the handshake state machine per call and
// sends the next command. It returns false if the connection was closed.
func (l *Loop) driveHandshake(c *conn) bool {
	frame, n, err := resp.Decode(c.readBuf)
	if err == resp.ErrIncomplete {
		return true
	}
	if err != nil {
		l.logger.Warnf("handshake: protocol error from upstream: %v", err)
		l.closeConn(c)
		return false
	}
	c.consumeRead(n)

	next, err := c.handshake.Advance(frame)
	if err != nil {
		l.logger.Errorf("handshake failed: %v", err)
		l.closeConn(c)
		return false
	}
	if next != nil {
		if err := writeAll(c.fd, next); err != nil {
			l.logger.Errorf("handshake: write failed: %v", err)
			l.closeConn(c)
			return false
		}
		return true
	}

	// next == nil means PSYNC's FULLRESYNC reply was just parsed: the
	// upstream switches to sending the raw snapshot body next.
	l.dispatcher.SetReplicaMasterState(c.handshake.MasterReplID(), c.handshake.MasterOffset())
	c.awaitingSnapshot = true
	c.handshake = nil
	return true
}

// consumeSnapshot reads the bulk-string header and then discards exactly
// that many raw bytes; the server only needs bootstrap, not reconciliation.
func (l *Loop) consumeSnapshot(c *conn) bool {
	if !c.snapshotHeaderDone {
		length, headerLen, err := resp.DecodeBulkHeader(c.readBuf)
		if err == resp.ErrIncomplete {
			return true
		}
		if err != nil {
			l.logger.Warnf("snapshot: bad bulk header: %v", err)
			l.closeConn(c)
			return false
		}
		c.consumeRead(headerLen)
		c.snapshotRemaining = length
		c.snapshotHeaderDone = true
	}
	if int64(len(c.readBuf)) < c.snapshotRemaining {
		return true
	}
	c.consumeRead(int(c.snapshotRemaining))
	c.awaitingSnapshot = false
	c.snapshotHeaderDone = false
	c.snapshotRemaining = 0
	return true
}

// processFrames decodes and dispatches every whole command frame currently
// buffered for c, acting on each Result before moving to the next.
func (l *Loop) processFrames(c *conn) {
	frames, consumed, decErr := extractFrames(c.readBuf)
	for _, df := range frames {
		l.dispatchOne(c, df)
	}
	c.consumeRead(consumed)
	if decErr != nil {
		l.logger.Warnf("protocol error on %s, closing: %v", c.addr, decErr)
		l.closeConn(c)
	}
}

func (l *Loop) dispatchOne(c *conn, df decodedFrame) {
	nowMs := time.Now().UnixMilli()
	isUpstream := c.kind == connUpstream
	result := l.dispatcher.Dispatch(c.id, c.addr, isUpstream, df.Raw, df.Frame, nowMs)

	if result.Reply != nil {
		if err := writeAll(c.fd, result.Reply); err != nil {
			l.logger.Warnf("write failed for %s: %v", c.addr, err)
			l.closeConn(c)
			return
		}
	}
	if result.SnapshotPayload != nil {
		if err := writeAll(c.fd, result.SnapshotPayload); err != nil {
			l.logger.Warnf("snapshot write failed for %s: %v", c.addr, err)
			l.closeConn(c)
			return
		}
	}
	if result.Propagate {
		l.propagate(df.Raw)
	}
	if result.BroadcastGetAck {
		l.broadcast(resp.EncodeArray([]byte("REPLCONF"), []byte("GETACK"), []byte("*")))
	}
}

// propagate fans df's raw bytes out to every registered replica in
// registration order, advancing the master offset exactly once.
func (l *Loop) propagate(raw []byte) {
	targets := l.dispatcher.Engine.Propagate(raw)
	l.dispatcher.Observer.ObservePropagation(uint64(len(raw)))
	for _, connID := range targets {
		if rc, ok := l.byConnID[connID]; ok {
			if err := writeAll(rc.fd, raw); err != nil {
				l.logger.Warnf("propagation write failed for replica %s: %v", rc.addr, err)
				l.closeConn(rc)
			}
		}
	}
}

func (l *Loop) broadcast(cmd []byte) {
	for _, r := range l.dispatcher.Engine.Replicas() {
		if rc, ok := l.byConnID[r.ConnID]; ok {
			if err := writeAll(rc.fd, cmd); err != nil {
				l.logger.Warnf("GETACK write failed for replica %s: %v", rc.addr, err)
				l.closeConn(rc)
			}
		}
	}
}

// sweepWaiters resolves due WAIT calls and replies to each waiting client.
func (l *Loop) sweepWaiters() {
	nowMs := time.Now().UnixMilli()
	for _, res := range l.dispatcher.SweepWaiters(nowMs) {
		if rc, ok := l.byConnID[res.ConnID]; ok {
			writeAll(rc.fd, resp.EncodeInteger(int64(res.Count)))
		}
	}
}

func (l *Loop) closeConn(c *conn) {
	if l.poller != nil {
		l.poller.Remove(c.fd)
	}
	unix.Close(c.fd)
	delete(l.conns, c.fd)
	delete(l.byConnID, c.id)
	if l.dispatcher.Engine != nil {
		l.dispatcher.Engine.RemoveReplica(c.id)
	}
}

// Close tears down the poller and the listener. Client connections are left
// to the kernel to reclaim on process exit.
func (l *Loop) Close() error {
	err := l.poller.Close()
	unix.Close(l.listenerFd)
	return err
}

// writeAll performs a blocking write of the full buffer, per the loop's
// shared-resource policy of using blocking send on small, trusted-peer
// buffers.
func writeAll(fd int, b []byte) error {
	for len(b) > 0 {
		n, err := unix.Write(fd, b)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN {
				// The fd is non-blocking: wait until it is writable again.
				if _, perr := unix.Poll([]unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}, -1); perr != nil && perr != unix.EINTR {
					return perr
				}
				continue
			}
			return err
		}
		b = b[n:]
	}
	return nil
}
