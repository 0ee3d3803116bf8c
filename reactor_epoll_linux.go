//go:build linux

package uco

import (
	"time"

	"golang.org/x/sys/unix"
)

// epollReactor is the Linux Reactor backend, pairing with
// reactor_kqueue_bsd.go for BSD/Darwin.
type epollReactor struct {
	epfd    int
	events  []unix.EpollEvent
	watched map[int]struct{}
}

func newPlatformReactor(cfg Config) (Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	backlog := cfg.ReactorBacklog
	if backlog <= 0 {
		backlog = 1024
	}
	return &epollReactor{
		epfd:    epfd,
		events:  make([]unix.EpollEvent, backlog),
		watched: make(map[int]struct{}),
	}, nil
}

func (r *epollReactor) Watch(fd int) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLERR | unix.EPOLLHUP,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}
	r.watched[fd] = struct{}{}
	return nil
}

func (r *epollReactor) Unwatch(fd int) {
	if _, ok := r.watched[fd]; !ok {
		return
	}
	delete(r.watched, fd)
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (r *epollReactor) Poll(timeout time.Duration) ([]ReadyEvent, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}

	n, err := unix.EpollWait(r.epfd, r.events, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	out := make([]ReadyEvent, 0, n)
	for i := 0; i < n; i++ {
		e := r.events[i]
		re := ReadyEvent{Fd: int(e.Fd)}
		if e.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			re.Err = unix.ECONNRESET
		}
		re.Readable = e.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0
		re.Writable = e.Events&unix.EPOLLOUT != 0
		out = append(out, re)
	}
	return out, nil
}

func (r *epollReactor) Close() error {
	return unix.Close(r.epfd)
}
