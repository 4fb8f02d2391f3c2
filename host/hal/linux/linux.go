//go:build linux

package linux

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ardnew/synccom/host/hal"
	"github.com/ardnew/synccom/pkg"
)

// Options configures a [HostHAL]. Zero fields take their defaults.
type Options struct {
	// Filter selects the devices the HAL opens.
	Filter hal.Filter

	// TransferTimeout bounds one bulk transfer.
	TransferTimeout time.Duration

	// SysfsRoot and DevfsRoot override the system paths.
	SysfsRoot string
	DevfsRoot string
}

// HostHAL implements [hal.HostHAL] on Linux usbfs.
type HostHAL struct {
	opts    Options
	sysfs   sysfs
	devices *devicePool

	poller  *poller
	hotplug *hotplugMonitor

	connectCh    chan hal.DeviceInfo
	disconnectCh chan hal.DeviceAddress

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mutex   sync.Mutex
	running bool
}

var _ hal.HostHAL = (*HostHAL)(nil)

// NewHostHAL creates a Linux host HAL.
func NewHostHAL(opts Options) *HostHAL {
	if opts.TransferTimeout <= 0 {
		opts.TransferTimeout = DefaultTransferTimeout
	}
	if opts.SysfsRoot == "" {
		opts.SysfsRoot = SysfsUSBPath
	}
	if opts.DevfsRoot == "" {
		opts.DevfsRoot = DevfsUSBPath
	}
	return &HostHAL{
		opts:         opts,
		sysfs:        sysfs{root: opts.SysfsRoot, devfs: opts.DevfsRoot},
		devices:      newDevicePool(),
		connectCh:    make(chan hal.DeviceInfo, MaxDevices),
		disconnectCh: make(chan hal.DeviceAddress, MaxDevices),
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

// Init opens the epoll instance and the hotplug socket.
func (h *HostHAL) Init(ctx context.Context) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.running {
		return pkg.ErrBusy
	}

	var err error
	if h.poller, err = newPoller(); err != nil {
		return err
	}
	if h.hotplug, err = newHotplugMonitor(); err != nil {
		_ = h.poller.close()
		return err
	}
	if err := h.poller.addFD(h.hotplug.fd, unix.EPOLLIN, h.onHotplug); err != nil {
		_ = h.hotplug.close()
		_ = h.poller.close()
		return err
	}

	h.ctx, h.cancel = context.WithCancel(ctx)
	pkg.LogDebug(pkg.ComponentHAL, "linux host HAL initialized",
		"sysfs", h.opts.SysfsRoot, "timeout", h.opts.TransferTimeout)
	return nil
}

// Start scans for attached devices and begins watching for hotplug events.
func (h *HostHAL) Start() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.ctx == nil {
		return pkg.ErrNotRunning
	}
	if h.running {
		return pkg.ErrAlreadyRunning
	}
	h.running = true

	h.wg.Add(1)
	go h.pollLoop()

	devices, err := h.sysfs.scan()
	if err != nil {
		pkg.LogWarn(pkg.ComponentHAL, "initial scan failed", "error", err)
	}
	for _, info := range devices {
		h.attach(info)
	}

	pkg.LogDebug(pkg.ComponentHAL, "linux host HAL started")
	return nil
}

// Stop ends hotplug processing.
func (h *HostHAL) Stop() error {
	h.mutex.Lock()
	if !h.running {
		h.mutex.Unlock()
		return nil
	}
	h.running = false
	h.cancel()
	h.mutex.Unlock()

	_ = h.poller.wake()
	h.wg.Wait()

	pkg.LogDebug(pkg.ComponentHAL, "linux host HAL stopped")
	return nil
}

// Close stops the HAL and closes every device.
func (h *HostHAL) Close() error {
	_ = h.Stop()

	h.mutex.Lock()
	defer h.mutex.Unlock()

	var errs []error
	for _, conn := range h.devices.removeAll() {
		errs = append(errs, conn.close())
	}
	if h.hotplug != nil {
		errs = append(errs, h.hotplug.close())
		h.hotplug = nil
	}
	if h.poller != nil {
		errs = append(errs, h.poller.close())
		h.poller = nil
	}

	pkg.LogDebug(pkg.ComponentHAL, "linux host HAL closed")
	return errors.Join(errs...)
}

// =============================================================================
// Devices and Transfers
// =============================================================================

// Devices returns the open devices.
func (h *HostHAL) Devices() []hal.DeviceInfo {
	return h.devices.infos()
}

// BulkTransfer performs a synchronous bulk transfer. The transfer is bounded
// by the configured timeout or ctx's deadline, whichever is sooner.
func (h *HostHAL) BulkTransfer(ctx context.Context, addr hal.DeviceAddress, endpoint uint8, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, pkg.ErrCancelled
	}

	conn := h.devices.get(addr)
	if conn == nil || conn.disconnected.Load() {
		return 0, pkg.ErrNoDevice
	}

	timeout := h.opts.TransferTimeout
	if deadline, ok := ctx.Deadline(); ok {
		// usbfs treats zero as no timeout.
		timeout = max(min(timeout, time.Until(deadline)), time.Millisecond)
	}

	n, err := doBulkTransfer(conn.fd, endpoint, data, timeout)
	err = transferError(err)
	switch {
	case errors.Is(err, pkg.ErrNoDevice):
		conn.disconnected.Store(true)
	case errors.Is(err, pkg.ErrStall):
		if cerr := clearHalt(conn.fd, endpoint); cerr != nil {
			pkg.LogWarn(pkg.ComponentHAL, "clear halt failed",
				"endpoint", endpoint, "error", cerr)
		}
	}
	return n, err
}

// ClaimInterface claims an interface on a device.
func (h *HostHAL) ClaimInterface(addr hal.DeviceAddress, iface uint8) error {
	conn := h.devices.get(addr)
	if conn == nil {
		return pkg.ErrNoDevice
	}
	return conn.claim(iface)
}

// ReleaseInterface releases a claimed interface.
func (h *HostHAL) ReleaseInterface(addr hal.DeviceAddress, iface uint8) error {
	conn := h.devices.get(addr)
	if conn == nil {
		return pkg.ErrNoDevice
	}
	return conn.release(iface)
}

// =============================================================================
// Connection Events
// =============================================================================

// WaitForConnection blocks until a device is opened.
func (h *HostHAL) WaitForConnection(ctx context.Context) (hal.DeviceInfo, error) {
	select {
	case <-ctx.Done():
		return hal.DeviceInfo{}, ctx.Err()
	case <-h.ctx.Done():
		return hal.DeviceInfo{}, pkg.ErrCancelled
	case info := <-h.connectCh:
		return info, nil
	}
}

// WaitForDisconnection blocks until an open device is removed.
func (h *HostHAL) WaitForDisconnection(ctx context.Context) (hal.DeviceAddress, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.ctx.Done():
		return 0, pkg.ErrCancelled
	case addr := <-h.disconnectCh:
		return addr, nil
	}
}

// =============================================================================
// Internal
// =============================================================================

// pollLoop runs the epoll wait loop until the HAL stops.
func (h *HostHAL) pollLoop() {
	defer h.wg.Done()

	for h.ctx.Err() == nil {
		if _, err := h.poller.pollOnce(pollTimeout); err != nil {
			pkg.LogWarn(pkg.ComponentHAL, "poll error", "error", err)
			time.Sleep(pollTimeout)
		}
	}
}

// onHotplug handles readiness of the netlink socket.
func (h *HostHAL) onHotplug(events uint32) {
	if events&unix.EPOLLIN == 0 {
		return
	}
	evts, err := h.hotplug.read()
	if err != nil {
		pkg.LogWarn(pkg.ComponentHAL, "hotplug read failed", "error", err)
	}
	for _, evt := range evts {
		switch evt.action {
		case ueventAdd:
			info, err := h.sysfs.parse(evt.name())
			if err != nil {
				pkg.LogDebug(pkg.ComponentHAL, "unreadable device",
					"devpath", evt.devpath, "error", err)
				continue
			}
			h.attach(info)
		case ueventRemove:
			if bus, dev, ok := evt.location(); ok {
				h.detach(bus, dev)
			}
		}
	}
}

// attach opens a device that passes the filter and reports it.
func (h *HostHAL) attach(info hal.DeviceInfo) {
	if !h.opts.Filter.Match(info) {
		return
	}
	if h.devices.find(info.Bus, info.Device) != nil {
		return
	}

	conn, err := newDeviceConn(info)
	if err != nil {
		pkg.LogWarn(pkg.ComponentHAL, "failed to open device",
			"path", info.Path, "error", err)
		return
	}
	addr, ok := h.devices.add(conn)
	if !ok {
		_ = conn.close()
		pkg.LogWarn(pkg.ComponentHAL, "no device slots available")
		return
	}

	pkg.LogDebug(pkg.ComponentHAL, "device attached",
		"address", addr, "device", conn.info.String(), "speed", info.Speed)

	select {
	case h.connectCh <- conn.info:
	default:
		pkg.LogWarn(pkg.ComponentHAL, "connection event dropped", "address", addr)
	}
}

// detach closes a removed device and reports it.
func (h *HostHAL) detach(bus, dev uint8) {
	conn := h.devices.find(bus, dev)
	if conn == nil {
		return
	}
	addr := conn.info.Address
	h.devices.remove(addr)
	_ = conn.close()

	pkg.LogDebug(pkg.ComponentHAL, "device detached", "address", addr)

	select {
	case h.disconnectCh <- addr:
	default:
		pkg.LogWarn(pkg.ComponentHAL, "disconnection event dropped", "address", addr)
	}
}
