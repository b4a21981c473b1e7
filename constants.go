package kvstore

import "github.com/ehrlich-b/go-kvstore/internal/constants"

// Re-exported for convenience of callers of the public API.
const (
	KeyspaceCapacity = constants.KeyspaceCapacity
	DefaultPort      = constants.DefaultPort
	MinPort          = constants.MinPort
	MaxPort          = constants.MaxPort
)
