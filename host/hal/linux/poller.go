//go:build linux

package linux

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// pollDesc describes a file descriptor being polled.
type pollDesc struct {
	fd       int
	events   uint32
	callback func(uint32)
}

// poller multiplexes readiness callbacks over one epoll instance. An
// eventfd lets other goroutines wake a blocked wait.
type poller struct {
	epfd   int
	wakefd int

	mutex sync.Mutex
	fds   map[int]*pollDesc
}

// newPoller creates an epoll instance with its wake eventfd registered.
func newPoller() (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}

	p := &poller{epfd: epfd, wakefd: wakefd, fds: make(map[int]*pollDesc)}
	if err := p.addFD(wakefd, unix.EPOLLIN, nil); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, err
	}
	return p, nil
}

// close releases the epoll instance and the wake eventfd.
func (p *poller) close() error {
	return errors.Join(unix.Close(p.wakefd), unix.Close(p.epfd))
}

// addFD registers fd; callback runs on the polling goroutine whenever one
// of events is ready.
func (p *poller) addFD(fd int, events uint32, callback func(uint32)) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	event := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
		return err
	}
	p.fds[fd] = &pollDesc{fd: fd, events: events, callback: callback}
	return nil
}

// delFD unregisters fd.
func (p *poller) delFD(fd int) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	delete(p.fds, fd)
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// wake interrupts a blocked pollOnce.
func (p *poller) wake() error {
	var buf [8]byte
	buf[0] = 1
	_, err := unix.Write(p.wakefd, buf[:])
	return err
}

// pollOnce waits up to timeout for events and runs their callbacks. It
// returns the number of callbacks run. A negative timeout waits forever.
func (p *poller) pollOnce(timeout time.Duration) (int, error) {
	var events [maxEpollEvents]unix.EpollEvent

	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	n, err := unix.EpollWait(p.epfd, events[:], ms)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, err
	}

	processed := 0
	for _, ev := range events[:n] {
		fd := int(ev.Fd)
		if fd == p.wakefd {
			var buf [8]byte
			_, _ = unix.Read(p.wakefd, buf[:])
			continue
		}

		p.mutex.Lock()
		desc, ok := p.fds[fd]
		p.mutex.Unlock()

		if ok && desc.callback != nil {
			desc.callback(ev.Events)
			processed++
		}
	}
	return processed, nil
}
