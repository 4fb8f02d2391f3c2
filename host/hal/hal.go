package hal

import (
	"context"
	"fmt"
)

// Speed represents the USB connection speed.
type Speed uint8

// USB speed constants.
const (
	SpeedUnknown Speed = iota // Not connected or unknown
	SpeedLow                  // Low Speed (1.5 Mbit/s)
	SpeedFull                 // Full Speed (12 Mbit/s)
	SpeedHigh                 // High Speed (480 Mbit/s)
	SpeedSuper                // SuperSpeed (5 Gbit/s)
)

// String returns a human-readable speed name.
func (s Speed) String() string {
	switch s {
	case SpeedLow:
		return "Low Speed"
	case SpeedFull:
		return "Full Speed"
	case SpeedHigh:
		return "High Speed"
	case SpeedSuper:
		return "SuperSpeed"
	default:
		return "Unknown"
	}
}

// DeviceAddress identifies an attached device within one HAL. Addresses
// start at 1 and are reused after a device detaches.
type DeviceAddress uint8

// DeviceInfo describes an attached device.
type DeviceInfo struct {
	Address   DeviceAddress `yaml:"address"`
	Bus       uint8         `yaml:"bus"`
	Device    uint8         `yaml:"device"`
	VendorID  uint16        `yaml:"vendor_id"`
	ProductID uint16        `yaml:"product_id"`
	Speed     Speed         `yaml:"-"`
	Serial    string        `yaml:"serial,omitempty"`
	Path      string        `yaml:"path"`
}

// String returns the device's bus location and identity.
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%03d/%03d %04x:%04x", d.Bus, d.Device, d.VendorID, d.ProductID)
}

// Filter selects devices by vendor and product. A zero field matches any
// value.
type Filter struct {
	VendorID  uint16
	ProductID uint16
}

// Match reports whether d passes the filter.
func (f Filter) Match(d DeviceInfo) bool {
	if f.VendorID != 0 && f.VendorID != d.VendorID {
		return false
	}
	if f.ProductID != 0 && f.ProductID != d.ProductID {
		return false
	}
	return true
}

// EndpointIn is the direction bit of an IN endpoint address.
const EndpointIn = 0x80

// IsIn reports whether endpoint is an IN (device to host) endpoint.
func IsIn(endpoint uint8) bool {
	return endpoint&EndpointIn != 0
}

// HostHAL defines the Hardware Abstraction Layer for talking to attached
// cards. Implementations track device arrival and removal and carry bulk
// transfers; the host package implements everything card-specific on top.
//
// All methods must be safe for concurrent use.
type HostHAL interface {
	// Init prepares the HAL. The context bounds the HAL's lifetime.
	Init(ctx context.Context) error

	// Start begins device discovery. Devices already present are reported
	// through WaitForConnection like new arrivals.
	Start() error

	// Stop ends device discovery.
	Stop() error

	// Close releases every device and all HAL resources.
	Close() error

	// Devices returns the devices currently attached.
	Devices() []DeviceInfo

	// BulkTransfer performs a bulk transfer on endpoint. For IN endpoints
	// data is filled with received bytes; for OUT endpoints data is sent.
	// It returns the number of bytes transferred.
	BulkTransfer(ctx context.Context, addr DeviceAddress, endpoint uint8, data []byte) (int, error)

	// ClaimInterface claims exclusive access to an interface, detaching
	// any kernel driver bound to it.
	ClaimInterface(addr DeviceAddress, iface uint8) error

	// ReleaseInterface releases a claimed interface.
	ReleaseInterface(addr DeviceAddress, iface uint8) error

	// WaitForConnection blocks until a device attaches or ctx is done.
	WaitForConnection(ctx context.Context) (DeviceInfo, error)

	// WaitForDisconnection blocks until a device detaches or ctx is done.
	WaitForDisconnection(ctx context.Context) (DeviceAddress, error)
}
