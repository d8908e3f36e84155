//go:build darwin || freebsd || netbsd || openbsd

package poller

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

type kqueuePoller struct {
	cancel context.CancelFunc
	kq     int

	mu   sync.RWMutex
	regs map[int]*kqReg
}

type kqReg struct {
	fd                   int
	conn                 net.Conn
	interest             []Interest
	handler              Handler
	lastWritableUnixNano int64
}

// NewOS returns the kqueue-backed Poller for BSD/Darwin.
func NewOS() Poller { return &kqueuePoller{regs: make(map[int]*kqReg)} }

func (p *kqueuePoller) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var runCtx context.Context
	runCtx, p.cancel = context.WithCancel(ctx)

	fd, err := unix.Kqueue()
	if err != nil {
		return err
	}
	p.kq = fd
	go p.loop(runCtx)
	return nil
}

func (p *kqueuePoller) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Lock()
	regs := p.regs
	p.regs = make(map[int]*kqReg)
	p.mu.Unlock()
	for fd := range regs {
		del := []unix.Kevent_t{
			{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
			{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
		}
		_, _ = unix.Kevent(p.kq, del, nil, nil)
	}
	if p.kq > 0 {
		_ = unix.Close(p.kq)
		p.kq = -1
	}
	return nil
}

func (p *kqueuePoller) Register(conn net.Conn, interests []Interest, h Handler) error {
	if conn == nil || h == nil {
		return errInvalidRegistration
	}
	fd, err := getFD(conn)
	if err != nil {
		return err
	}

	var changes []unix.Kevent_t
	for _, in := range interests {
		switch in {
		case Readable:
			changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_ENABLE})
		case Writable:
			changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | unix.EV_ENABLE})
		}
	}
	if len(changes) == 0 {
		return errInvalidRegistration
	}
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		return err
	}

	p.mu.Lock()
	p.regs[fd] = &kqReg{fd: fd, conn: conn, interest: interests, handler: h}
	p.mu.Unlock()
	return nil
}

func (p *kqueuePoller) Deregister(conn net.Conn) error {
	fd, err := getFD(conn)
	if err != nil {
		return err
	}
	del := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, _ = unix.Kevent(p.kq, del, nil, nil)
	p.mu.Lock()
	delete(p.regs, fd)
	p.mu.Unlock()
	return nil
}

func (p *kqueuePoller) loop(ctx context.Context) {
	events := make([]unix.Kevent_t, 64)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := unix.Kevent(p.kq, nil, events, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		p.mu.RLock()
		for i := 0; i < n; i++ {
			ev := events[i]
			reg, ok := p.regs[int(ev.Ident)]
			if !ok {
				continue
			}
			if ev.Flags&unix.EV_ERROR != 0 {
				reg.handler(Event{Conn: reg.conn, Err: unix.Errno(ev.Data)})
				continue
			}
			if ev.Filter == unix.EVFILT_READ && containsInterest(reg.interest, Readable) {
				reg.handler(Event{Conn: reg.conn, Interest: Readable})
			}
			if ev.Filter == unix.EVFILT_WRITE && containsInterest(reg.interest, Writable) {
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
