//go:build linux && (386 || amd64 || arm || arm64 || loong64 || riscv64 || s390x)

package linux

import "unsafe"

// Generic ioctl number layout:
//
//	bits 0-7:   command number
//	bits 8-15:  ioctl type
//	bits 16-29: argument size
//	bits 30-31: direction
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

func ior(typ, nr, size uintptr) uintptr  { return ioc(iocRead, typ, nr, size) }
func iowr(typ, nr, size uintptr) uintptr { return ioc(iocRead|iocWrite, typ, nr, size) }

// usbdevfs ioctl type character.
const usbdevfsType = 'U'

// usbdevfs request numbers.
var (
	ioctlBulk             = iowr(usbdevfsType, 2, unsafe.Sizeof(bulkTransfer{}))
	ioctlClaimInterface   = ior(usbdevfsType, 15, unsafe.Sizeof(uint32(0)))
	ioctlReleaseInterface = ior(usbdevfsType, 16, unsafe.Sizeof(uint32(0)))
	ioctlClearHalt        = ior(usbdevfsType, 21, unsafe.Sizeof(uint32(0)))
	ioctlDisconnectClaim  = ior(usbdevfsType, 27, unsafe.Sizeof(disconnectClaim{}))
)
