// Package linux provides a USB host HAL for Linux using usbfs.
//
// The HAL uses usbfs (/dev/bus/usb/) for device access, sysfs
// (/sys/bus/usb/devices/) for discovery and a netlink uevent socket for
// hotplug. It is pure Go with no cgo; system calls go through
// golang.org/x/sys/unix.
//
// # Requirements
//
// The process needs read/write access to the card's device node in
// /dev/bus/usb/, either by running as root or through a udev rule such as:
//
//	SUBSYSTEM=="usb", ATTR{idVendor}=="2eb0", MODE="0666"
//
// # Transfers
//
// Bulk transfers are synchronous USBDEVFS_BULK calls bounded by the
// configured transfer timeout or the caller's deadline, whichever is
// sooner. A cancelled context is honoured between transfers, never during
// one.
//
// # Hotplug
//
// An epoll loop watches the netlink socket. Arriving devices that pass
// the configured [hal.Filter] are opened and reported through
// WaitForConnection; removed devices are closed and reported through
// WaitForDisconnection.
package linux
