package uco

import (
	"container/list"
	"io"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// CoroSock is a watched socket: a non-blocking fd wrapped
// in a buffered transport, three FIFO wait queues (read/write/connect-or
// -accept), and backpressure thresholds on the output buffer.
type CoroSock struct {
	rt     *Runtime
	fd     sockID
	status statusBit

	in, out byteQueue
	hwm, lwm int

	readq, writeq, eventq *list.List // of uthreadID

	listening  bool
	connecting bool
	closed     bool
}

func (rt *Runtime) newSock(fd sockID) *CoroSock {
	return &CoroSock{
		rt:     rt,
		fd:     fd,
		hwm:    rt.cfg.DefaultHWM,
		lwm:    rt.cfg.DefaultLWM,
		readq:  list.New(),
		writeq: list.New(),
		eventq: list.New(),
	}
}

// --- public API -----------------------------------------------------------

// Open connects to address over network ("tcp" or "tcp4"/"tcp6"), parking
// the calling uthread until the connection completes or fails.
func (rt *Runtime) Open(network, address string) (int, error) {
	fd, err := dialNonblocking(network, address)
	if err != nil {
		return 0, err
	}
	sk := rt.newSock(sockID(fd))
	sk.connecting = true
	rt.socks.put(sk.fd, sk)
	if err := rt.reactor.Watch(fd); err != nil {
		rt.socks.delete(sk.fd)
		unix.Close(fd)
		return 0, ErrRegisterFD
	}

	self := rt.selfUthread()
	self.ev = coroEvent{Kind: SockConnectNotify, Sock: sk.fd}
	sk.eventq.PushBack(self.tid)
	self.sw.switchOut()

	if self.ioErr != nil {
		err, self.ioErr = self.ioErr, nil
		return 0, err
	}
	return int(sk.fd), nil
}

// Listen creates a listening socket bound to address.
func (rt *Runtime) Listen(network, address string) (int, error) {
	fd, err := listenNonblocking(network, address)
	if err != nil {
		return 0, err
	}
	sk := rt.newSock(sockID(fd))
	sk.listening = true
	sk.status |= StatusRead // a listening socket is always "readable" re: backlog
	rt.socks.put(sk.fd, sk)
	if err := rt.reactor.Watch(fd); err != nil {
		rt.socks.delete(sk.fd)
		unix.Close(fd)
		return 0, ErrRegisterFD
	}
	return int(sk.fd), nil
}

// Accept blocks until a new connection arrives on listenFd.
func (rt *Runtime) Accept(listenFd int) (int, error) {
	sk, ok := rt.socks.get(sockID(listenFd))
	if !ok || !sk.listening {
		return 0, ErrInvalidSock
	}

	if newfd, ok := sk.tryAccept(); ok {
		return rt.acceptComplete(sk, newfd)
	}

	self := rt.selfUthread()
	self.ev = coroEvent{Kind: SockAcceptNotify, Sock: sk.fd}
	sk.eventq.PushBack(self.tid)
	self.sw.switchOut()

	if self.ioErr != nil {
		err, self.ioErr = self.ioErr, nil
		return 0, err
	}
	return self.ioResult.(int), nil
}

func (rt *Runtime) acceptComplete(sk *CoroSock, newfd int) (int, error) {
	nsk := rt.newSock(sockID(newfd))
	nsk.status |= StatusWrite // freshly-accepted sockets are writable
	rt.socks.put(nsk.fd, nsk)
	if err := rt.reactor.Watch(newfd); err != nil {
		rt.socks.delete(nsk.fd)
		unix.Close(newfd)
		return 0, ErrRegisterFD
	}
	return newfd, nil
}

// Read blocks until n bytes are available (or EOF/error).
func (rt *Runtime) Read(fd int, n int) ([]byte, error) {
	for {
		sk, ok := rt.socks.get(sockID(fd))
		if !ok {
			return nil, ErrInvalidSock
		}
		if sk.status.has(StatusSockError) {
			return nil, ErrSockError
		}
		if sk.in.len() >= n {
			dst := make([]byte, n)
			sk.in.take(dst)
			return dst, nil
		}
		if sk.status.has(StatusSockEOF) {
			if sk.in.len() > 0 {
				dst := make([]byte, sk.in.len())
				sk.in.take(dst)
				return dst, nil
			}
			return nil, io.EOF
		}

		self := rt.selfUthread()
		self.ev = coroEvent{Kind: SockReadNotify, Sock: sk.fd}
		sk.readq.PushBack(self.tid)
		self.sw.switchOut()
		// retry from the top: another waiter may have drained what woke us
	}
}

// Write blocks only while the output buffer's occupancy is at or above hwm.
func (rt *Runtime) Write(fd int, buf []byte) error {
	if len(buf) == 0 {
		return ErrEmptyBuffer
	}
	sk, ok := rt.socks.get(sockID(fd))
	if !ok {
		return ErrInvalidSock
	}
	if sk.status.has(StatusSockError) {
		return ErrSockError
	}
	if sk.closed {
		return ErrWriteClosed
	}

	sk.out.append(buf)
	sk.tryFlushOut()

	for sk.out.len() >= sk.hwm {
		if sk.status.has(StatusSockError) {
			return ErrSockError
		}
		self := rt.selfUthread()
		self.ev = coroEvent{Kind: SockWriteNotify, Sock: sk.fd}
		sk.writeq.PushBack(self.tid)
		self.sw.switchOut()
	}
	return nil
}

// Close releases a socket's resources. Any coroutine still parked on it is
// woken with a sticky error first.
func (rt *Runtime) Close(fd int) error {
	sk, ok := rt.socks.get(sockID(fd))
	if !ok {
		return ErrInvalidSock
	}
	if sk.closed {
		return ErrDoubleClose
	}
	sk.closed = true
	sk.status |= StatusSockError
	rt.wakeAll(sk.readq, nil, ErrSockError)
	rt.wakeAll(sk.writeq, nil, ErrSockError)
	rt.wakeAll(sk.eventq, nil, ErrSockError)
	rt.reactor.Unwatch(fd)
	unix.Close(fd)
	rt.socks.delete(sk.fd)
	return nil
}

// SetHWM sets the output high water mark.
func (rt *Runtime) SetHWM(fd int, hwm int) error {
	sk, ok := rt.socks.get(sockID(fd))
	if !ok {
		return ErrInvalidSock
	}
	sk.hwm = hwm
	return nil
}

// SetLWM sets the output low water mark.
func (rt *Runtime) SetLWM(fd int, lwm int) error {
	sk, ok := rt.socks.get(sockID(fd))
	if !ok {
		return ErrInvalidSock
	}
	sk.lwm = lwm
	return nil
}

// LocalAddr reports the address a listening or connected socket is bound
// to, mainly so callers that Listen on port 0 can discover which port the
// kernel actually picked.
func (rt *Runtime) LocalAddr(fd int) (string, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return "", err
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port)), nil
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port)), nil
	default:
		return "", ErrUnsupported
	}
}

// --- reactor callbacks, run on the scheduler's call stack ------------------

func (sk *CoroSock) tryAccept() (int, bool) {
	nfd, _, err := unix.Accept4(int(sk.fd), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return 0, false
	}
	return nfd, true
}

// onReadable is invoked by the pump when the reactor reports fd readable.
func (sk *CoroSock) onReadable() {
	if sk.listening {
		sk.acceptLoop()
		return
	}

	eof := false
	for {
		tmp := make([]byte, 64*1024)
		n, err := unix.Read(int(sk.fd), tmp)
		if err != nil {
			if err == unix.EAGAIN {
				break
			}
			if err == unix.EINTR {
				continue
			}
			sk.onError(err)
			return
		}
		if n == 0 {
			sk.status |= StatusSockEOF
			eof = true
			break
		}
		sk.in.append(tmp[:n])
		if n < len(tmp) {
			break // short read, drained for now
		}
	}
	if eof {
		// EOF wakes all three queues, like onError; writers re-check their
		// own condition, eventq waiters (Open) get ErrSockEOF.
		sk.rt.wakeAll(sk.writeq, nil, nil)
		sk.rt.wakeAll(sk.eventq, nil, ErrSockEOF)
	}
	sk.rt.wakeAll(sk.readq, nil, nil)
}

// onWritable is invoked by the pump when the reactor reports fd writable.
func (sk *CoroSock) onWritable() {
	if sk.connecting {
		sk.connecting = false
		if errno, _ := unix.GetsockoptInt(int(sk.fd), unix.SOL_SOCKET, unix.SO_ERROR); errno != 0 {
			sk.onError(unix.Errno(errno))
			return
		}
		sk.status |= StatusWrite
		sk.rt.wakeAll(sk.eventq, nil, nil)
		return
	}

	sk.tryFlushOut()
	if sk.out.len() < sk.lwm {
		sk.rt.wakeAll(sk.writeq, nil, nil)
	}
}

// onError handles a sticky error/hangup reported by the reactor, waking all
// three queues. readq/writeq waiters only ever check sk.status on resume, so
// they're woken with the generic ErrSockError; eventq waiters (Open, Accept)
// read ioErr back directly and get the normalized cause.
func (sk *CoroSock) onError(err error) {
	sk.status |= StatusSockError
	sk.rt.wakeAll(sk.readq, nil, ErrSockError)
	sk.rt.wakeAll(sk.writeq, nil, ErrSockError)
	sk.rt.wakeAll(sk.eventq, nil, normalizeSockErr(err))
}

// normalizeSockErr maps a raw errno from the reactor or a socket syscall
// onto the taxonomy's transport sentinels.
func normalizeSockErr(err error) error {
	switch err {
	case unix.ECONNREFUSED:
		return ErrConnRefused
	case unix.ECONNRESET:
		return ErrConnReset
	default:
		return ErrSockError
	}
}

func (sk *CoroSock) tryFlushOut() {
	for sk.out.len() > 0 {
		n, err := unix.Write(int(sk.fd), sk.out.peekAll())
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			if err == unix.EINTR {
				continue
			}
			sk.onError(err)
			return
		}
		sk.out.drop(n)
		if n == 0 {
			return
		}
	}
}

func (sk *CoroSock) acceptLoop() {
	for sk.eventq.Len() > 0 {
		nfd, ok := sk.tryAccept()
		if !ok {
			return
		}
		front := sk.eventq.Front()
		tid := front.Value.(uthreadID)
		sk.eventq.Remove(front)

		newfd, err := sk.rt.acceptComplete(sk, nfd)
		tu, ok := sk.rt.ths.get(tid)
		if !ok {
			continue // waiter exited/was reaped before we could wake it
		}
		if err != nil {
			tu.ioResult = nil
			tu.ioErr = err
		} else {
			tu.ioResult = newfd
			tu.ioErr = nil
		}
		sk.rt.enqueueRunnable(tid)
	}
}

// wakeAll moves every parked tid on q to the runnable queue, stashing an
// optional result/error for it to observe on resume. gaio's own wake-all
// write-drain policy ("thundering herd acceptable at current scale")
// is reused here for every queue kind.
func (rt *Runtime) wakeAll(q *list.List, result any, err error) {
	for e := q.Front(); e != nil; {
		next := e.Next()
		tid := e.Value.(uthreadID)
		q.Remove(e)
		if tu, ok := rt.ths.get(tid); ok {
			tu.ioResult = result
			tu.ioErr = err
			rt.enqueueRunnable(tid)
		}
		e = next
	}
}

// --- raw socket helpers -----------------------------------------------------

func dialNonblocking(network, address string) (int, error) {
	domain, typ, err := socketDomainType(network)
	if err != nil {
		return 0, err
	}
	raddr, err := net.ResolveTCPAddr(network, address)
	if err != nil {
		return 0, err
	}
	fd, err := unix.Socket(domain, typ|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, err
	}
	sa, err := sockaddrFromTCPAddr(raddr)
	if err != nil {
		unix.Close(fd)
		return 0, err
	}
	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return 0, normalizeSockErr(err)
	}
	return fd, nil
}

func listenNonblocking(network, address string) (int, error) {
	domain, typ, err := socketDomainType(network)
	if err != nil {
		return 0, err
	}
	laddr, err := net.ResolveTCPAddr(network, address)
	if err != nil {
		return 0, err
	}
	fd, err := unix.Socket(domain, typ|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return 0, err
	}
	sa, err := sockaddrFromTCPAddr(laddr)
	if err != nil {
		unix.Close(fd)
		return 0, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return 0, err
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return 0, err
	}
	return fd, nil
}

func socketDomainType(network string) (domain, typ int, err error) {
	switch network {
	case "tcp", "tcp4":
		return unix.AF_INET, unix.SOCK_STREAM, nil
	case "tcp6":
		return unix.AF_INET6, unix.SOCK_STREAM, nil
	default:
		return 0, 0, ErrUnsupported
	}
}

func sockaddrFromTCPAddr(addr *net.TCPAddr) (unix.Sockaddr, error) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		var sa unix.SockaddrInet4
		sa.Port = addr.Port
		copy(sa.Addr[:], ip4)
		return &sa, nil
	}
	if ip6 := addr.IP.To16(); ip6 != nil {
		var sa unix.SockaddrInet6
		sa.Port = addr.Port
		copy(sa.Addr[:], ip6)
		return &sa, nil
	}
	return nil, &net.AddrError{Err: "unsupported address", Addr: addr.IP.String() + ":" + strconv.Itoa(addr.Port)}
}
