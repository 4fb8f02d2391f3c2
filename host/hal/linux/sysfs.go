package linux

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ardnew/synccom/host/hal"
)

// sysfs locates devices under a sysfs tree and their usbfs nodes.
type sysfs struct {
	root  string // normally SysfsUSBPath
	devfs string // normally DevfsUSBPath
}

// scan returns every USB device under the sysfs root. Root hubs and
// interface entries are skipped, as are devices whose attributes cannot
// be read.
func (s sysfs) scan() ([]hal.DeviceInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	var devices []hal.DeviceInfo
	for _, entry := range entries {
		name := entry.Name()

		// Devices are named like "1-1" or "1-1.2"; "usb1" is a root hub
		// and "1-1:1.0" an interface.
		if strings.HasPrefix(name, "usb") || strings.Contains(name, ":") {
			continue
		}

		info, err := s.parse(name)
		if err != nil {
			continue
		}
		devices = append(devices, info)
	}
	return devices, nil
}

// parse reads one device's attributes.
func (s sysfs) parse(name string) (hal.DeviceInfo, error) {
	dir := filepath.Join(s.root, name)
	var info hal.DeviceInfo

	bus, err := readUint8(filepath.Join(dir, "busnum"))
	if err != nil {
		return info, err
	}
	dev, err := readUint8(filepath.Join(dir, "devnum"))
	if err != nil {
		return info, err
	}
	info.Bus, info.Device = bus, dev
	info.Path = s.devicePath(bus, dev)

	if v, err := readHex16(filepath.Join(dir, "idVendor")); err == nil {
		info.VendorID = v
	}
	if v, err := readHex16(filepath.Join(dir, "idProduct")); err == nil {
		info.ProductID = v
	}
	if v, err := readString(filepath.Join(dir, "speed")); err == nil {
		info.Speed = parseSpeed(v)
	}
	if v, err := readString(filepath.Join(dir, "serial")); err == nil {
		info.Serial = v
	}
	return info, nil
}

// devicePath returns the usbfs node of a device.
func (s sysfs) devicePath(bus, dev uint8) string {
	return fmt.Sprintf("%s/%03d/%03d", s.devfs, bus, dev)
}

func readString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readUint8(path string) (uint8, error) {
	s, err := readString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 8)
	return uint8(v), err
}

func readHex16(path string) (uint16, error) {
	s, err := readString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 16)
	return uint16(v), err
}

// parseSpeed converts a sysfs speed attribute in Mbit/s to a hal.Speed.
func parseSpeed(s string) hal.Speed {
	switch s {
	case "1.5":
		return hal.SpeedLow
	case "12":
		return hal.SpeedFull
	case "480":
		return hal.SpeedHigh
	case "5000", "10000", "20000":
		return hal.SpeedSuper
	default:
		return hal.SpeedUnknown
	}
}
