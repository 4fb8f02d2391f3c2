//go:build linux

package linux

import (
	"sync"
	"sync/atomic"

	"github.com/ardnew/synccom/host/hal"
	"github.com/ardnew/synccom/pkg"
)

// deviceConn is an open usbfs device node.
type deviceConn struct {
	fd   int
	info hal.DeviceInfo

	claimMutex sync.Mutex
	claimed    uint32 // bitmask of claimed interfaces

	disconnected atomic.Bool
}

// newDeviceConn opens the device node described by info.
func newDeviceConn(info hal.DeviceInfo) (*deviceConn, error) {
	fd, err := openDevice(info.Path)
	if err != nil {
		return nil, err
	}
	return &deviceConn{fd: fd, info: info}, nil
}

// close releases claimed interfaces and closes the node.
func (d *deviceConn) close() error {
	d.disconnected.Store(true)

	d.claimMutex.Lock()
	for i := range uint8(maxInterfaces) {
		if d.claimed&(1<<i) != 0 {
			_ = releaseInterface(d.fd, i)
		}
	}
	d.claimed = 0
	d.claimMutex.Unlock()

	return closeDevice(d.fd)
}

// claim claims an interface once; later calls are no-ops.
func (d *deviceConn) claim(iface uint8) error {
	if iface >= maxInterfaces {
		return pkg.ErrInvalidParameter
	}

	d.claimMutex.Lock()
	defer d.claimMutex.Unlock()

	mask := uint32(1) << iface
	if d.claimed&mask != 0 {
		return nil
	}
	if err := claimInterface(d.fd, iface); err != nil {
		return transferError(err)
	}
	d.claimed |= mask
	return nil
}

// release releases a claimed interface.
func (d *deviceConn) release(iface uint8) error {
	if iface >= maxInterfaces {
		return pkg.ErrInvalidParameter
	}

	d.claimMutex.Lock()
	defer d.claimMutex.Unlock()

	mask := uint32(1) << iface
	if d.claimed&mask == 0 {
		return nil
	}
	if err := releaseInterface(d.fd, iface); err != nil {
		return transferError(err)
	}
	d.claimed &^= mask
	return nil
}

// devicePool assigns addresses to open devices. Addresses are the lowest
// free value in 1..MaxDevices.
type devicePool struct {
	mutex sync.Mutex
	conns map[hal.DeviceAddress]*deviceConn
}

func newDevicePool() *devicePool {
	return &devicePool{conns: make(map[hal.DeviceAddress]*deviceConn)}
}

// add stores conn under a free address and records it in conn.info. It
// returns false if every address is taken.
func (p *devicePool) add(conn *deviceConn) (hal.DeviceAddress, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for a := hal.DeviceAddress(1); a <= MaxDevices; a++ {
		if _, taken := p.conns[a]; !taken {
			conn.info.Address = a
			p.conns[a] = conn
			return a, true
		}
	}
	return 0, false
}

// get returns the device at addr.
func (p *devicePool) get(addr hal.DeviceAddress) *deviceConn {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.conns[addr]
}

// find returns the device at a bus location.
func (p *devicePool) find(bus, dev uint8) *deviceConn {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for _, c := range p.conns {
		if c.info.Bus == bus && c.info.Device == dev {
			return c
		}
	}
	return nil
}

// remove drops the device at addr and returns it.
func (p *devicePool) remove(addr hal.DeviceAddress) *deviceConn {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	c := p.conns[addr]
	delete(p.conns, addr)
	return c
}

// removeAll empties the pool and returns what it held.
func (p *devicePool) removeAll() []*deviceConn {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	out := make([]*deviceConn, 0, len(p.conns))
	for a, c := range p.conns {
		out = append(out, c)
		delete(p.conns, a)
	}
	return out
}

// infos returns the description of every pooled device.
func (p *devicePool) infos() []hal.DeviceInfo {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	out := make([]hal.DeviceInfo, 0, len(p.conns))
	for _, c := range p.conns {
		out = append(out, c.info)
	}
	return out
}
