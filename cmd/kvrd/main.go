package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	kvstore "github.com/ehrlich-b/go-kvstore"
	"github.com/ehrlich-b/go-kvstore/internal/config"
	"github.com/ehrlich-b/go-kvstore/internal/logging"
)

func main() {
	var (
		dir        = flag.String("dir", ".", "Directory the snapshot file is read from on startup")
		dbFilename = flag.String("dbfilename", "dump.rdb", "Snapshot file name within --dir")
		port       = flag.Int("port", 6379, "TCP port to listen on")
		replicaOf  = flag.String("replicaof", "", "Boot as a replica of \"<host> <port>\" instead of a primary")
		verbose    = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	cfg := config.Default()
	cfg.Dir = *dir
	cfg.DBFilename = *dbFilename
	cfg.Port = *port
	if *replicaOf != "" {
		target, err := config.ParseReplicaOf(*replicaOf)
		if err != nil {
			logger.Errorf("invalid --replicaof: %v", err)
			os.Exit(1)
		}
		cfg.ReplicaOf = target
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := kvstore.CreateAndServe(ctx, cfg, nil)
	if err != nil {
		logger.Errorf("failed to create server: %v", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("stopping server")
		if err := kvstore.StopAndDelete(context.Background(), srv); err != nil {
			logger.Errorf("error stopping server: %v", err)
		} else {
			logger.Info("server stopped successfully")
		}
	}()

	info := srv.Info()
	fmt.Printf("kvrd listening on %s (role: %s)\n", info.Addr, info.Role)
	fmt.Printf("Press Ctrl+C to stop...\n")
	fmt.Printf("Send SIGUSR1 (kill -USR1 %d) to dump goroutine stacks\n", os.Getpid())

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			logger.Info("=== GOROUTINE STACK TRACE DUMP ===")
			buf := make([]byte, 1024*1024)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "\n=== FULL GOROUTINE STACK DUMP ===\n%s\n=== END STACK DUMP ===\n\n", buf[:n])

			filename := fmt.Sprintf("kvrd-stacks-%d.txt", time.Now().Unix())
			if f, err := os.Create(filename); err == nil {
				fmt.Fprintf(f, "Goroutine stack dump at %s\nProcess ID: %d\n\n", time.Now().Format(time.RFC3339), os.Getpid())
				f.Write(buf[:n])
				fmt.Fprintf(f, "\n\n=== GOROUTINE PROFILE ===\n")
				pprof.Lookup("goroutine").WriteTo(f, 2)
				f.Close()
				logger.Infof("stack trace written to file: %s", filename)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")
	cancel()

	cleanupDone := make(chan bool)
	go func() {
		if err := kvstore.StopAndDelete(context.Background(), srv); err != nil {
			logger.Errorf("error stopping server: %v", err)
		}
		cleanupDone <- true
	}()

	select {
	case <-cleanupDone:
		logger.Info("clean shutdown complete")
	case <-time.After(5 * time.Second):
		logger.Warn("shutdown timed out, exiting anyway")
	}

	os.Exit(0)
}
