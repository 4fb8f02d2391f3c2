//go:build linux

package linux

import (
	"errors"

	"golang.org/x/sys/unix"
)

// hotplugMonitor receives kernel uevents from a netlink socket.
type hotplugMonitor struct {
	fd  int
	buf [ueventBufferSize]byte
}

// newHotplugMonitor opens a non-blocking netlink socket bound to the
// kernel's uevent broadcast group.
func newHotplugMonitor() (*hotplugMonitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK,
		unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK,
		netlinkKObjectUEvent)
	if err != nil {
		return nil, err
	}

	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &hotplugMonitor{fd: fd}, nil
}

// close closes the socket.
func (h *hotplugMonitor) close() error {
	return unix.Close(h.fd)
}

// read drains every pending uevent that concerns a USB device.
func (h *hotplugMonitor) read() ([]uevent, error) {
	var events []uevent
	for {
		n, err := unix.Read(h.fd, h.buf[:])
		if errors.Is(err, unix.EAGAIN) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		if n <= 0 {
			return events, nil
		}
		if evt := parseUEvent(h.buf[:n]); evt.isUSBDevice() {
			events = append(events, evt)
		}
	}
}
