//go:build linux

package eventloop

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// epollPoller implements Poller with a level-triggered epoll instance.
type epollPoller struct {
	epfd int
}

// NewPoller creates the platform readiness poller. On Linux this is epoll.
func NewPoller() (Poller, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("eventloop: epoll_create1: %w", err)
	}
	return &epollPoller{epfd: fd}, nil
}

func eventMask(wantWrite bool) uint32 {
	mask := uint32(unix.EPOLLIN | unix.EPOLLRDHUP)
	if wantWrite {
		mask |= unix.EPOLLOUT
	}
	return mask
}

func (p *epollPoller) Add(fd int, wantWrite bool) error {
	ev := &unix.EpollEvent{Events: eventMask(wantWrite), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (p *epollPoller) ModifyWrite(fd int, wantWrite bool) error {
	ev := &unix.EpollEvent{Events: eventMask(wantWrite), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (p *epollPoller) Remove(fd int) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (p *epollPoller) Wait(timeoutMs int) ([]Event, error) {
	raw := make([]unix.EpollEvent, 256)
	n, err := unix.EpollWait(p.epfd, raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("eventloop: epoll_wait: %w", err)
	}
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		out[i] = Event{
			Fd:       int(raw[i].Fd),
			Readable: raw[i].Events&unix.EPOLLIN != 0,
			Writable: raw[i].Events&unix.EPOLLOUT != 0,
			HungUp:   raw[i].Events&(unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0,
		}
	}
	return out, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
