//go:build !linux

package eventloop

import "fmt"

// NewPoller is unimplemented on non-Linux platforms: the server relies on
// epoll's level-triggered readiness semantics, which have no portable
// stand-in here.
func NewPoller() (Poller, error) {
	return nil, fmt.Errorf("eventloop: epoll-based poller not supported on this platform; build and run on linux")
}
