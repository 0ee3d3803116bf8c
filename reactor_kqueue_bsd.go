//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package uco

import (
	"time"

	"golang.org/x/sys/unix"
)

// kqueueReactor is the BSD/Darwin Reactor backend, paired with
// reactor_epoll_linux.go for Linux.
type kqueueReactor struct {
	kq      int
	watched map[int]struct{}
	backlog int
}

func newPlatformReactor(cfg Config) (Reactor, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	backlog := cfg.ReactorBacklog
	if backlog <= 0 {
		backlog = 1024
	}
	return &kqueueReactor{kq: kq, watched: make(map[int]struct{}), backlog: backlog}, nil
}

func (r *kqueueReactor) Watch(fd int) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD},
	}
	if _, err := unix.Kevent(r.kq, changes, nil, nil); err != nil {
		return err
	}
	r.watched[fd] = struct{}{}
	return nil
}

func (r *kqueueReactor) Unwatch(fd int) {
	if _, ok := r.watched[fd]; !ok {
		return
	}
	delete(r.watched, fd)
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, _ = unix.Kevent(r.kq, changes, nil, nil)
}

func (r *kqueueReactor) Poll(timeout time.Duration) ([]ReadyEvent, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}

	out := make([]unix.Kevent_t, r.backlog)
	n, err := unix.Kevent(r.kq, nil, out, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	byFd := make(map[int]*ReadyEvent, n)
	result := make([]ReadyEvent, 0, n)
	get := func(fd int) *ReadyEvent {
		if re, ok := byFd[fd]; ok {
			return re
		}
		result = append(result, ReadyEvent{Fd: fd})
		re := &result[len(result)-1]
		byFd[fd] = re
		return re
	}

	for i := 0; i < n; i++ {
		kv := out[i]
		fd := int(kv.Ident)
		re := get(fd)
		// EV_ERROR is a genuine kqueue-reported error. EV_EOF on a read
		// filter is the ordinary graceful-close signal — the peer may
		// still have unread bytes sitting in the socket buffer, so it must
		// not be treated as an error: Readable below lets onReadable read the
		// remaining data, and a later read returning 0 flags the EOF.
		if kv.Flags&unix.EV_ERROR != 0 {
			re.Err = unix.ECONNRESET
		}
		switch kv.Filter {
		case unix.EVFILT_READ:
			re.Readable = true
		case unix.EVFILT_WRITE:
			re.Writable = true
		}
	}
	return result, nil
}

func (r *kqueueReactor) Close() error {
	return unix.Close(r.kq)
}
