//go:build linux

package poller

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

type epollPoller struct {
	cancel context.CancelFunc
	epfd   int

	mu   sync.RWMutex
	regs map[int]*epReg
}

type epReg struct {
	fd                   int
	conn                 net.Conn
	interest             []Interest
	handler              Handler
	lastWritableUnixNano int64
}

// NewOS returns the epoll-backed Poller for Linux.
func NewOS() Poller { return &epollPoller{regs: make(map[int]*epReg)} }

func (p *epollPoller) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var runCtx context.Context
	runCtx, p.cancel = context.WithCancel(ctx)

	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = fd
	go p.loop(runCtx)
	return nil
}

func (p *epollPoller) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Lock()
	for fd := range p.regs {
		_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	}
	p.regs = make(map[int]*epReg)
	p.mu.Unlock()
	if p.epfd > 0 {
		_ = unix.Close(p.epfd)
		p.epfd = -1
	}
	return nil
}

func epollMask(interests []Interest) uint32 {
	var mask uint32
	for _, in := range interests {
		switch in {
		case Readable:
			mask |= unix.EPOLLIN
		case Writable:
			mask |= unix.EPOLLOUT
		}
	}
	return mask
}

func (p *epollPoller) Register(conn net.Conn, interests []Interest, h Handler) error {
	if conn == nil || h == nil {
		return errInvalidRegistration
	}
	fd, err := getFD(conn)
	if err != nil {
		return err
	}
	mask := epollMask(interests)
	if mask == 0 {
		return errInvalidRegistration
	}

	ev := unix.EpollEvent{Events: mask, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}

	p.mu.Lock()
	p.regs[fd] = &epReg{fd: fd, conn: conn, interest: interests, handler: h}
	p.mu.Unlock()
	return nil
}

func (p *epollPoller) Deregister(conn net.Conn) error {
	fd, err := getFD(conn)
	if err != nil {
		return err
	}
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	p.mu.Lock()
	delete(p.regs, fd)
	p.mu.Unlock()
	return nil
}

func (p *epollPoller) loop(ctx context.Context) {
	events := make([]unix.EpollEvent, 64)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := unix.EpollWait(p.epfd, events, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		p.mu.RLock()
		for i := 0; i < n; i++ {
			ev := events[i]
			reg, ok := p.regs[int(ev.Fd)]
			if !ok {
				continue
			}
			if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				reg.handler(Event{Conn: reg.conn, Err: unix.ECONNRESET})
				continue
			}
			if ev.Events&unix.EPOLLIN != 0 && containsInterest(reg.interest, Readable) {
				reg.handler(Event{Conn: reg.conn, Interest: Readable})
			}
			if ev.Events&unix.EPOLLOUT != 0 && containsInterest(reg.interest, Writable) {
				now := time.Now().UnixNano()
				last := atomic.LoadInt64(&reg.lastWritableUnixNano)
				if last == 0 || time.Duration(now-last) >= 50*time.Millisecond {
					reg.handler(Event{Conn: reg.conn, Interest: Writable})
					atomic.StoreInt64(&reg.lastWritableUnixNano, now)
				}
			}
		}
		p.mu.RUnlock()
	}
}
