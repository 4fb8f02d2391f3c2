//go:build linux

package linux

import (
	"errors"
	"fmt"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ardnew/synccom/pkg"
)

// bulkTransfer matches the kernel's struct usbdevfs_bulktransfer.
type bulkTransfer struct {
	endpoint uint32
	length   uint32
	timeout  uint32 // milliseconds
	data     uintptr
}

// disconnectClaim matches the kernel's struct usbdevfs_disconnect_claim.
type disconnectClaim struct {
	iface  uint32
	flags  uint32
	driver [256]byte
}

// openDevice opens a usbfs device node for read/write access.
func openDevice(path string) (int, error) {
	return unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
}

// closeDevice closes a usbfs device node.
func closeDevice(fd int) error {
	return unix.Close(fd)
}

// ioctlPtr performs an ioctl whose argument is a pointer and returns the
// kernel's result value.
func ioctlPtr(fd int, req uintptr, arg unsafe.Pointer) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return int(r), errno
	}
	return int(r), nil
}

// doBulkTransfer performs a synchronous bulk transfer.
func doBulkTransfer(fd int, endpoint uint8, data []byte, timeout time.Duration) (int, error) {
	bulk := bulkTransfer{
		endpoint: uint32(endpoint),
		length:   uint32(len(data)),
		timeout:  uint32(timeout / time.Millisecond),
	}
	if len(data) > 0 {
		bulk.data = uintptr(unsafe.Pointer(&data[0]))
	}
	n, err := ioctlPtr(fd, ioctlBulk, unsafe.Pointer(&bulk))
	runtime.KeepAlive(data)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// claimInterface claims an interface, detaching any kernel driver first.
// Kernels without USBDEVFS_DISCONNECT_CLAIM fall back to a plain claim.
func claimInterface(fd int, iface uint8) error {
	dc := disconnectClaim{iface: uint32(iface)}
	_, err := ioctlPtr(fd, ioctlDisconnectClaim, unsafe.Pointer(&dc))
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.ENOTTY) && !errors.Is(err, unix.EINVAL) {
		return err
	}
	n := uint32(iface)
	_, err = ioctlPtr(fd, ioctlClaimInterface, unsafe.Pointer(&n))
	return err
}

// releaseInterface releases a claimed interface.
func releaseInterface(fd int, iface uint8) error {
	n := uint32(iface)
	_, err := ioctlPtr(fd, ioctlReleaseInterface, unsafe.Pointer(&n))
	return err
}

// clearHalt clears a stall condition on an endpoint.
func clearHalt(fd int, endpoint uint8) error {
	ep := uint32(endpoint)
	_, err := ioctlPtr(fd, ioctlClearHalt, unsafe.Pointer(&ep))
	return err
}

// transferError maps a usbfs errno to the driver's transfer errors. The
// original errno stays in the chain.
func transferError(err error) error {
	if err == nil {
		return nil
	}
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return err
	}
	if errno == unix.EBUSY {
		return fmt.Errorf("%w: %w", pkg.ErrBusy, err)
	}
	status, ok := transferStatus(errno)
	if !ok {
		return err
	}
	return fmt.Errorf("%w: %w", status.Error(), err)
}

// transferStatus classifies a usbfs errno as a transfer completion status.
func transferStatus(errno unix.Errno) (pkg.TransferStatus, bool) {
	switch errno {
	case unix.ENODEV, unix.ESHUTDOWN, unix.ENOENT:
		return pkg.TransferStatusNoDevice, true
	case unix.EPIPE:
		return pkg.TransferStatusStall, true
	case unix.ETIMEDOUT:
		return pkg.TransferStatusTimeout, true
	case unix.EPROTO, unix.EILSEQ, unix.EOVERFLOW, unix.ECOMM, unix.ENOSR:
		return pkg.TransferStatusError, true
	case unix.ECONNRESET, unix.EINTR:
		return pkg.TransferStatusCancelled, true
	}
	return pkg.TransferStatusError, false
}
