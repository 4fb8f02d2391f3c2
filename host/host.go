package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ardnew/synccom/host/hal"
	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/port"
)

// Options configures a [Host].
type Options struct {
	// Filter selects the devices treated as cards.
	Filter hal.Filter

	// Interface is the interface claimed on each card.
	Interface uint8

	// Port configures every attached port.
	Port port.Config

	// Init, if non-nil, is programmed into each card before its port
	// starts.
	Init *port.InitOptions

	// Registry receives attached ports. A registry named with
	// [DefaultPortPrefix] is created when nil.
	Registry *port.Registry
}

// DefaultOptions matches SyncCom cards and programs the default clock and
// registers on attach.
func DefaultOptions() Options {
	initOpts := port.DefaultInitOptions()
	return Options{
		Filter:    hal.Filter{VendorID: VendorID, ProductID: ProductID},
		Interface: DefaultInterface,
		Port:      port.DefaultConfig(),
		Init:      &initOpts,
	}
}

// Host manages the attached cards.
type Host struct {
	hal      hal.HostHAL
	opts     Options
	registry *port.Registry

	// Attached cards by HAL address
	cards map[hal.DeviceAddress]*Card

	// State
	running  bool
	mutex    sync.RWMutex
	monitors sync.WaitGroup

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc

	// Event channels
	cardAttached chan *Card

	// Callbacks
	onAttach func(*Card)
	onDetach func(*Card)
}

// New creates a host driving h.
func New(h hal.HostHAL, opts Options) *Host {
	if opts.Registry == nil {
		opts.Registry = port.NewRegistry(DefaultPortPrefix)
	}
	if opts.Port.MemoryCap == (port.MemoryCap{}) {
		opts.Port.MemoryCap = port.DefaultConfig().MemoryCap
	}
	return &Host{
		hal:          h,
		opts:         opts,
		registry:     opts.Registry,
		cards:        make(map[hal.DeviceAddress]*Card),
		cardAttached: make(chan *Card, MaxCards),
	}
}

// Start starts the HAL and begins attaching cards.
func (h *Host) Start(ctx context.Context) error {
	h.mutex.Lock()
	if h.running {
		h.mutex.Unlock()
		return pkg.ErrAlreadyRunning
	}

	h.ctx, h.cancel = context.WithCancel(ctx)
	h.mutex.Unlock()

	if err := h.hal.Init(h.ctx); err != nil {
		h.cancel()
		return fmt.Errorf("init hal: %w", err)
	}

	if err := h.hal.Start(); err != nil {
		h.cancel()
		return fmt.Errorf("start hal: %w", err)
	}

	h.mutex.Lock()
	h.running = true
	h.mutex.Unlock()

	pkg.LogInfo(pkg.ComponentHost, "host started")

	h.monitors.Add(2)
	go h.monitorConnections()
	go h.monitorDisconnections()

	return nil
}

// Stop detaches every card and stops the HAL.
func (h *Host) Stop() error {
	h.mutex.Lock()
	if !h.running {
		h.mutex.Unlock()
		return nil
	}

	h.running = false
	h.cancel()
	h.mutex.Unlock()

	h.monitors.Wait()

	h.mutex.Lock()
	cards := h.cards
	h.cards = make(map[hal.DeviceAddress]*Card)
	h.mutex.Unlock()

	var errs []error
	for _, c := range cards {
		errs = append(errs, c.close())
	}
	errs = append(errs, h.hal.Stop())

	pkg.LogInfo(pkg.ComponentHost, "host stopped")
	return errors.Join(errs...)
}

// IsRunning returns true if the host is running.
func (h *Host) IsRunning() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.running
}

// Registry returns the registry holding the attached ports.
func (h *Host) Registry() *port.Registry {
	return h.registry
}

// Cards returns the attached cards.
func (h *Host) Cards() []*Card {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	result := make([]*Card, 0, len(h.cards))
	for _, c := range h.cards {
		result = append(result, c)
	}
	return result
}

// Card returns the card at the given HAL address.
func (h *Host) Card(addr hal.DeviceAddress) *Card {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.cards[addr]
}

// WaitCard blocks until a card is attached.
func (h *Host) WaitCard(ctx context.Context) (*Card, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.ctx.Done():
		return nil, pkg.ErrCancelled
	case c := <-h.cardAttached:
		return c, nil
	}
}

// SetOnAttach sets the callback run after a card's port starts.
func (h *Host) SetOnAttach(cb func(*Card)) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.onAttach = cb
}

// SetOnDetach sets the callback run after a card's port closes.
func (h *Host) SetOnDetach(cb func(*Card)) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.onDetach = cb
}

// monitorConnections attaches cards as the HAL reports them.
func (h *Host) monitorConnections() {
	defer h.monitors.Done()
	for {
		info, err := h.hal.WaitForConnection(h.ctx)
		if err != nil {
			if h.ctx.Err() != nil {
				return
			}
			pkg.LogWarn(pkg.ComponentHost, "error waiting for connection",
				"error", err)
			continue
		}

		if !h.opts.Filter.Match(info) {
			pkg.LogDebug(pkg.ComponentHost, "ignoring device", "device", info)
			continue
		}

		c, err := h.attach(info)
		if err != nil {
			pkg.LogWarn(pkg.ComponentHost, "attach failed",
				"device", info,
				"error", err)
			continue
		}

		h.mutex.RLock()
		cb := h.onAttach
		h.mutex.RUnlock()

		select {
		case h.cardAttached <- c:
		default:
		}

		if cb != nil {
			cb(c)
		}
	}
}

// monitorDisconnections detaches cards as the HAL reports them gone.
func (h *Host) monitorDisconnections() {
	defer h.monitors.Done()
	for {
		addr, err := h.hal.WaitForDisconnection(h.ctx)
		if err != nil {
			if h.ctx.Err() != nil {
				return
			}
			pkg.LogWarn(pkg.ComponentHost, "error waiting for disconnection",
				"error", err)
			continue
		}

		h.mutex.Lock()
		c, ok := h.cards[addr]
		delete(h.cards, addr)
		cb := h.onDetach
		h.mutex.Unlock()

		if !ok {
			continue
		}

		pkg.LogInfo(pkg.ComponentHost, "card disconnected",
			"address", addr,
			"port", c.Port().Name())

		if err := c.close(); err != nil {
			pkg.LogWarn(pkg.ComponentHost, "detach failed",
				"port", c.Port().Name(),
				"error", err)
		}

		if cb != nil {
			cb(c)
		}
	}
}

// attach claims the card, builds its port and starts it.
func (h *Host) attach(info hal.DeviceInfo) (*Card, error) {
	h.mutex.RLock()
	n := len(h.cards)
	h.mutex.RUnlock()
	if n >= MaxCards {
		return nil, fmt.Errorf("%w: %d cards attached", pkg.ErrNoMemory, n)
	}

	if err := h.hal.ClaimInterface(info.Address, h.opts.Interface); err != nil {
		return nil, fmt.Errorf("claim interface %d: %w", h.opts.Interface, err)
	}

	c := newCard(h, info)
	c.startReader(h.ctx)

	if h.opts.Init != nil {
		if err := c.port.Init(h.ctx, *h.opts.Init); err != nil {
			return nil, errors.Join(fmt.Errorf("init card: %w", err), c.close())
		}
	}

	if err := c.port.Start(h.ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("start port: %w", err), c.close())
	}

	entry, err := h.registry.Add(c.port)
	if err != nil {
		return nil, errors.Join(err, c.close())
	}
	c.entry = entry

	h.mutex.Lock()
	h.cards[info.Address] = c
	h.mutex.Unlock()

	pkg.LogInfo(pkg.ComponentHost, "card attached",
		"device", info,
		"port", c.port.Name(),
		"id", entry.ID)
	return c, nil
}
