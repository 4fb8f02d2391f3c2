package host

import (
	"context"
	"errors"
	"sync"

	"github.com/ardnew/synccom/host/hal"
	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/port"
	"github.com/ardnew/synccom/register"
)

// Card is an attached SyncCom card and the port it serves.
type Card struct {
	host  *Host
	info  hal.DeviceInfo
	port  *port.Port
	entry *port.Entry

	// Reader state
	cancel context.CancelFunc
	reader sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// newCard builds the port for a claimed card.
func newCard(h *Host, info hal.DeviceInfo) *Card {
	c := &Card{host: h, info: info}
	bus := register.NewBus(commandPipe{card: c})
	c.port = port.New(h.registry.NextName(), bus, c, h.opts.Port)
	return c
}

// Info returns the card's device description.
func (c *Card) Info() hal.DeviceInfo {
	return c.info
}

// Address returns the card's HAL address.
func (c *Card) Address() hal.DeviceAddress {
	return c.info.Address
}

// Port returns the card's port.
func (c *Card) Port() *port.Port {
	return c.port
}

// Entry returns the card's registry entry, or nil before registration.
func (c *Card) Entry() *port.Entry {
	return c.entry
}

// startReader launches the data IN reader.
func (c *Card) startReader(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.reader.Add(1)
	go c.readLoop(ctx)
}

// close stops the reader, closes the port and releases the card.
func (c *Card) close() error {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.reader.Wait()

		var errs []error
		errs = append(errs, c.port.Close())
		if c.entry != nil {
			c.host.registry.Remove(c.entry.ID)
		}

		err := c.host.hal.ReleaseInterface(c.info.Address, c.host.opts.Interface)
		if err != nil && !errors.Is(err, pkg.ErrNoDevice) {
			errs = append(errs, err)
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
