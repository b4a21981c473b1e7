// Package config holds the server's boot-time configuration, populated by
// the calling binary. Flag parsing lives in cmd/kvrd, kept separate from
// this package so the library API never depends on the flag package.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ehrlich-b/go-kvstore/internal/constants"
)

// ReplicaTarget identifies the primary a replica should connect to.
type ReplicaTarget struct {
	Host string
	Port int
}

// Config is the full set of parameters a server boots with.
type Config struct {
	// Dir is the directory the snapshot file is read from on startup.
	Dir string
	// DBFilename is the snapshot file's name within Dir.
	DBFilename string
	// Port is the TCP port the server listens on.
	Port int
	// ReplicaOf, if non-nil, makes this server boot as a replica of the
	// named primary instead of as a primary itself.
	ReplicaOf *ReplicaTarget
}

// Default returns a Config with the server's default port and snapshot
// filename, and no replication target (i.e. primary role).
func Default() Config {
	return Config{
		Dir:        ".",
		DBFilename: "dump.rdb",
		Port:       constants.DefaultPort,
	}
}

// Validate checks that the configuration describes a bootable server.
func (c Config) Validate() error {
	if c.Port < constants.MinPort || c.Port > constants.MaxPort {
		return fmt.Errorf("config: port %d out of range [%d, %d]", c.Port, constants.MinPort, constants.MaxPort)
	}
	if c.Dir == "" {
		return fmt.Errorf("config: dir must not be empty")
	}
	if c.DBFilename == "" {
		return fmt.Errorf("config: dbfilename must not be empty")
	}
	if c.ReplicaOf != nil {
		if c.ReplicaOf.Host == "" {
			return fmt.Errorf("config: replicaof host must not be empty")
		}
		if c.ReplicaOf.Port < constants.MinPort || c.ReplicaOf.Port > constants.MaxPort {
			return fmt.Errorf("config: replicaof port %d out of range [%d, %d]", c.ReplicaOf.Port, constants.MinPort, constants.MaxPort)
		}
	}
	return nil
}

// ParseReplicaOf parses a "--replicaof" flag value of the form
// "<host> <port>".
func ParseReplicaOf(value string) (*ReplicaTarget, error) {
	fields := strings.Fields(value)
	if len(fields) != 2 {
		return nil, fmt.Errorf("config: --replicaof expects \"<host> <port>\", got %q", value)
	}
	port, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("config: --replicaof port %q is not a number", fields[1])
	}
	return &ReplicaTarget{Host: fields[0], Port: port}, nil
}
