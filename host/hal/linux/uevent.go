package linux

import (
	"bytes"
	"strconv"
	"strings"
)

// ueventAction represents a kernel uevent action.
type ueventAction uint8

const (
	ueventUnknown ueventAction = iota
	ueventAdd
	ueventRemove
	ueventChange
	ueventBind
	ueventUnbind
)

var ueventActions = map[string]ueventAction{
	"add":    ueventAdd,
	"remove": ueventRemove,
	"change": ueventChange,
	"bind":   ueventBind,
	"unbind": ueventUnbind,
}

// uevent is a parsed kernel uevent.
type uevent struct {
	action    ueventAction
	devpath   string // DEVPATH
	subsystem string // SUBSYSTEM
	devtype   string // DEVTYPE
	busnum    string // BUSNUM
	devnum    string // DEVNUM
	product   string // PRODUCT, "vid/pid/bcd" in unpadded hex
}

// parseUEvent parses a netlink uevent message: an "action@devpath" header
// followed by NUL-separated KEY=value pairs.
func parseUEvent(data []byte) uevent {
	var evt uevent

	for _, field := range bytes.Split(data, []byte{0}) {
		if len(field) == 0 {
			continue
		}
		s := string(field)

		key, value, ok := strings.Cut(s, "=")
		if !ok {
			if action, path, ok := strings.Cut(s, "@"); ok {
				evt.action = ueventActions[action]
				evt.devpath = path
			}
			continue
		}

		switch key {
		case "ACTION":
			evt.action = ueventActions[value]
		case "DEVPATH":
			evt.devpath = value
		case "SUBSYSTEM":
			evt.subsystem = value
		case "DEVTYPE":
			evt.devtype = value
		case "BUSNUM":
			evt.busnum = value
		case "DEVNUM":
			evt.devnum = value
		case "PRODUCT":
			evt.product = value
		}
	}
	return evt
}

// isUSBDevice reports whether the event concerns a whole USB device rather
// than one of its interfaces.
func (e uevent) isUSBDevice() bool {
	return e.subsystem == "usb" && e.devtype == "usb_device"
}

// location returns the bus and device numbers carried by the event.
func (e uevent) location() (bus, dev uint8, ok bool) {
	b, err := strconv.ParseUint(e.busnum, 10, 8)
	if err != nil {
		return 0, 0, false
	}
	d, err := strconv.ParseUint(e.devnum, 10, 8)
	if err != nil {
		return 0, 0, false
	}
	return uint8(b), uint8(d), true
}

// ids returns the vendor and product IDs carried by the event.
func (e uevent) ids() (vendor, product uint16, ok bool) {
	parts := strings.Split(e.product, "/")
	if len(parts) < 2 {
		return 0, 0, false
	}
	v, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	p, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	return uint16(v), uint16(p), true
}

// name returns the sysfs entry name of the event's device.
func (e uevent) name() string {
	i := strings.LastIndexByte(e.devpath, '/')
	return e.devpath[i+1:]
}
