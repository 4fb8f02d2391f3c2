package linux

import "time"

// MaxDevices is the maximum number of devices tracked at once.
const MaxDevices = 64

// maxInterfaces bounds the interface numbers that can be claimed.
const maxInterfaces = 32

// DefaultTransferTimeout bounds a single bulk transfer.
const DefaultTransferTimeout = 5 * time.Second

// System paths.
const (
	// SysfsUSBPath is the base path for USB devices in sysfs.
	SysfsUSBPath = "/sys/bus/usb/devices"

	// DevfsUSBPath is the base path for USB device nodes.
	DevfsUSBPath = "/dev/bus/usb"
)

// netlinkKObjectUEvent is the netlink protocol carrying kernel uevents.
const netlinkKObjectUEvent = 15

// ueventBufferSize is the receive buffer for one netlink message.
const ueventBufferSize = 4096

// maxEpollEvents is the most events retrieved per epoll_wait call.
const maxEpollEvents = 32

// pollTimeout bounds each epoll_wait so the loop notices cancellation.
const pollTimeout = 100 * time.Millisecond
