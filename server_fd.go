package kvstore

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// fdHaver is satisfied by net.TCPListener and net.TCPConn, the only two
// connection types the server ever hands to the event loop.
type fdHaver interface {
	File() (*os.File, error)
}

// dupListenerFd extracts a non-blocking, independently-owned file descriptor
// from a net package connection or listener, suitable for registering
// directly with the epoll-based event loop. The original net.File handle is
// closed once the fd has been duplicated into f, since net.Conn.File()
// itself returns a dup and leaves the caller owning both.
func dupListenerFd(c fdHaver) (int, error) {
	f, err := c.File()
	if err != nil {
		return -1, err
	}
	defer f.Close()
	fd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// writeFull performs a blocking write of the full buffer to fd, tolerating
// EINTR, matching the event loop's own blocking-send helper for the small
// amount of handshake traffic sent before a connection is handed to it.
func writeFull(fd int, b []byte) error {
	for len(b) > 0 {
		n, err := unix.Write(fd, b)
		if err != nil {
			if err == syscall.EINTR {
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
