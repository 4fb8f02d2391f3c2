package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ardnew/synccom/host"
	"github.com/ardnew/synccom/host/hal"
	"github.com/ardnew/synccom/host/hal/sim"
	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/port"
)

// session is one card attached for the duration of a command.
type session struct {
	hal  hal.HostHAL
	host *host.Host
	card *host.Card
}

// newHAL returns the USB HAL, or with --simulate a HAL holding one
// emulated loopback card.
func newHAL() (hal.HostHAL, error) {
	if !simulate {
		return newUSBHAL(cfg)
	}
	h := sim.NewHostHAL()
	h.Plug(sim.NewCard())
	return h, nil
}

// cardDevices returns the devices passing filter in bus order.
func cardDevices(devs []hal.DeviceInfo, filter hal.Filter) []hal.DeviceInfo {
	out := make([]hal.DeviceInfo, 0, len(devs))
	for _, d := range devs {
		if filter.Match(d) {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b hal.DeviceInfo) int {
		if c := cmp.Compare(a.Bus, b.Bus); c != 0 {
			return c
		}
		return cmp.Compare(a.Device, b.Device)
	})
	return out
}

// openSession attaches the card at --index. When initialize is set the
// configured clock and registers are programmed first.
func openSession(ctx context.Context, initialize bool) (*session, error) {
	h, err := newHAL()
	if err != nil {
		return nil, err
	}

	opts, err := cfg.HostOptions(port.NewRegistry(host.DefaultPortPrefix))
	if err != nil {
		return nil, errors.Join(err, h.Close())
	}
	if !initialize {
		opts.Init = nil
	}

	s := &session{hal: h, host: host.New(h, opts)}
	if err := s.host.Start(ctx); err != nil {
		return nil, errors.Join(err, h.Close())
	}

	devs := cardDevices(h.Devices(), cfg.Filter())
	if cardIndex < 0 || cardIndex >= len(devs) {
		s.close()
		return nil, fmt.Errorf("%w: card %d not found (%d attached)",
			pkg.ErrNoDevice, cardIndex, len(devs))
	}
	addr := devs[cardIndex].Address

	waitCtx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()
	for s.host.Card(addr) == nil {
		if _, err := s.host.WaitCard(waitCtx); err != nil {
			s.close()
			return nil, fmt.Errorf("card %d did not attach: %w", cardIndex, err)
		}
	}
	s.card = s.host.Card(addr)

	pkg.LogDebug(pkg.ComponentCLI, "session open",
		"index", cardIndex,
		"device", s.card.Info(),
		"port", s.card.Port().Name())
	return s, nil
}

// port returns the session's port.
func (s *session) port() *port.Port {
	return s.card.Port()
}

// close detaches the card and releases the HAL.
func (s *session) close() error {
	return errors.Join(s.host.Stop(), s.hal.Close())
}

// withSession runs fn against an attached card.
func withSession(ctx context.Context, initialize bool, fn func(*port.Port) error) error {
	s, err := openSession(ctx, initialize)
	if err != nil {
		return err
	}
	return errors.Join(fn(s.port()), s.close())
}
