package kvstore

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ehrlich-b/go-kvstore/internal/config"
	"github.com/ehrlich-b/go-kvstore/internal/constants"
	"github.com/ehrlich-b/go-kvstore/internal/dispatch"
	"github.com/ehrlich-b/go-kvstore/internal/eventloop"
	"github.com/ehrlich-b/go-kvstore/internal/logging"
	"github.com/ehrlich-b/go-kvstore/internal/rdb"
	"github.com/ehrlich-b/go-kvstore/internal/replication"
	"github.com/ehrlich-b/go-kvstore/internal/store"
)

// Options contains additional options for server creation.
type Options struct {
	// Logger receives all server diagnostic output. If nil, logging.Default()
	// is used.
	Logger *logging.Logger

	// Observer receives metrics events. If nil, a fresh MetricsObserver backed
	// by a new Metrics instance is used.
	Observer Observer
}

// Server is a running key-value server: a listener, an event loop, and the
// keyspace/dispatcher/replication state the loop drives.
type Server struct {
	cfg      config.Config
	listener *net.TCPListener
	loop     *eventloop.Loop
	metrics  *Metrics
	observer Observer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan error
}

// State represents the current lifecycle state of a server.
type State string

const (
	StateCreated State = "created"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// Info summarizes a server's configuration and lifecycle state.
type Info struct {
	Addr  string `json:"addr"`
	Role  string `json:"role"`
	State State  `json:"state"`
}

// CreateAndServe boots a server from cfg and starts its event loop in a
// background goroutine. It loads any existing snapshot under cfg.Dir before
// accepting connections, and — if cfg.ReplicaOf is set — connects to that
// primary and sends the first handshake command (PING) before the loop
// starts; the loop drives the rest of the handshake.
//
// Example:
//
//	cfg := config.Default()
//	cfg.Port = 7000
//	srv, err := kvstore.CreateAndServe(context.Background(), cfg, nil)
func CreateAndServe(ctx context.Context, cfg config.Config, options *Options) (*Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if options == nil {
		options = &Options{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapError("CREATE_SERVER", err)
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Default()
	}

	metrics := NewMetrics()
	observer := options.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	ks := store.New(constants.KeyspaceCapacity, func() uint64 { return uint64(time.Now().UnixMilli()) })
	snapshotPath := cfg.Dir + "/" + cfg.DBFilename
	entries, err := rdb.Load(snapshotPath)
	if err != nil {
		return nil, NewError("LOAD_SNAPSHOT", ErrCodeFatalStartup, err.Error())
	}
	for _, e := range entries {
		relExpiry := int64(0)
		if e.ExpiryMs > 0 {
			relExpiry = int64(e.ExpiryMs) - time.Now().UnixMilli()
			if relExpiry < 0 {
				continue // already expired; skip rather than load a dead key
			}
		}
		if err := ks.Set(e.Key, e.Value, relExpiry); err != nil {
			logger.Warnf("dropping snapshot entry %q on load: %v", e.Key, err)
		}
	}
	logger.Infof("loaded %d keys from %s", ks.Len(), snapshotPath)

	role := replication.RolePrimary
	var engine *replication.Engine
	if cfg.ReplicaOf == nil {
		engine = replication.NewEngine()
	} else {
		role = replication.RoleReplica
	}

	d := dispatch.New(ks, cfg, role, engine, observer)

	addr := &net.TCPAddr{Port: cfg.Port}
	tcpListener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, NewError("LISTEN", ErrCodeFatalStartup, err.Error())
	}

	listenerFd, err := dupListenerFd(tcpListener)
	if err != nil {
		tcpListener.Close()
		return nil, WrapError("LISTEN", err)
	}

	loop, err := eventloop.New(listenerFd, d, role, logger)
	if err != nil {
		tcpListener.Close()
		return nil, WrapError("CREATE_EVENTLOOP", err)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	srv := &Server{
		cfg:      cfg,
		listener: tcpListener,
		loop:     loop,
		metrics:  metrics,
		observer: observer,
		ctx:      srvCtx,
		cancel:   cancel,
		done:     make(chan error, 1),
	}

	if cfg.ReplicaOf != nil {
		if err := srv.connectToPrimary(d, logger); err != nil {
			srv.cancel()
			tcpListener.Close()
			return nil, WrapError("CONNECT_PRIMARY", err)
		}
	}

	go func() {
		srv.done <- loop.Run(srvCtx)
	}()

	logger.Infof("server listening on %s (role=%s)", tcpListener.Addr(), role)
	return srv, nil
}

// connectToPrimary dials cfg.ReplicaOf and registers the resulting socket
// with the event loop, which drives the handshake to completion as part of
// its normal read-readiness handling.
func (s *Server) connectToPrimary(d *dispatch.Dispatcher, logger *logging.Logger) error {
	target := s.cfg.ReplicaOf
	addr := fmt.Sprintf("%s:%d", target.Host, target.Port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dialing primary %s: %w", addr, err)
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return fmt.Errorf("unexpected connection type dialing %s", addr)
	}
	fd, err := dupListenerFd(tcpConn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("duplicating fd for primary connection: %w", err)
	}

	h := replication.NewHandshake(s.cfg.Port)
	first := h.Start()
	if err := writeFull(fd, first); err != nil {
		return fmt.Errorf("sending initial handshake command: %w", err)
	}
	if err := s.loop.RegisterUpstream(fd, addr, h); err != nil {
		return err
	}
	logger.Infof("connecting to primary %s", addr)
	return nil
}

// State returns the server's current lifecycle state.
func (s *Server) State() State {
	if s == nil {
		return StateStopped
	}
	select {
	case <-s.ctx.Done():
		return StateStopped
	default:
		return StateRunning
	}
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Info returns a snapshot of the server's configuration and state.
func (s *Server) Info() Info {
	role := "primary"
	if s.cfg.ReplicaOf != nil {
		role = "replica"
	}
	return Info{Addr: s.Addr(), Role: role, State: s.State()}
}

// Metrics returns the server's metrics instance.
func (s *Server) Metrics() *Metrics {
	if s == nil {
		return nil
	}
	return s.metrics
}

// StopAndDelete stops the server's event loop and releases its listener.
func StopAndDelete(ctx context.Context, s *Server) error {
	if s == nil {
		return ErrInvalidParameters
	}
	s.cancel()
	s.metrics.Stop()
	if err := s.loop.Close(); err != nil {
		return fmt.Errorf("closing event loop: %w", err)
	}
	if err := s.listener.Close(); err != nil {
		return fmt.Errorf("closing listener: %w", err)
	}
	select {
	case <-s.done:
	case <-time.After(time.Second):
	}
	return nil
}
