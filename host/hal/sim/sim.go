package sim

import (
	"context"
	"sync"

	"github.com/ardnew/synccom/host/hal"
	"github.com/ardnew/synccom/pkg"
)

// maxCards bounds the number of plugged cards.
const maxCards = 16

// HostHAL implements [hal.HostHAL] over emulated cards.
type HostHAL struct {
	mutex   sync.Mutex
	cards   map[hal.DeviceAddress]*Card
	claimed map[hal.DeviceAddress]uint32

	connectCh    chan hal.DeviceInfo
	disconnectCh chan hal.DeviceAddress

	ctx    context.Context
	cancel context.CancelFunc
}

var _ hal.HostHAL = (*HostHAL)(nil)

// NewHostHAL returns a HAL with no cards plugged.
func NewHostHAL() *HostHAL {
	h := &HostHAL{
		cards:        make(map[hal.DeviceAddress]*Card),
		claimed:      make(map[hal.DeviceAddress]uint32),
		connectCh:    make(chan hal.DeviceInfo, maxCards),
		disconnectCh: make(chan hal.DeviceAddress, maxCards),
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	return h
}

// Plug attaches card and reports its arrival. It returns the card's
// address, or zero if every address is taken.
func (h *HostHAL) Plug(card *Card) hal.DeviceAddress {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for a := hal.DeviceAddress(1); a <= maxCards; a++ {
		if _, taken := h.cards[a]; taken {
			continue
		}
		card.mutex.Lock()
		card.info.Address = a
		card.info.Bus, card.info.Device = 1, uint8(a)
		card.gone = make(chan struct{})
		info := card.info
		card.mutex.Unlock()

		h.cards[a] = card
		h.connectCh <- info
		pkg.LogDebug(pkg.ComponentHAL, "card plugged", "address", a)
		return a
	}
	return 0
}

// Unplug detaches the card at addr and reports its removal.
func (h *HostHAL) Unplug(addr hal.DeviceAddress) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	card, ok := h.cards[addr]
	if !ok {
		return
	}
	card.mutex.Lock()
	close(card.gone)
	card.mutex.Unlock()

	delete(h.cards, addr)
	delete(h.claimed, addr)
	h.disconnectCh <- addr
	pkg.LogDebug(pkg.ComponentHAL, "card unplugged", "address", addr)
}

// Init binds the HAL's lifetime to ctx.
func (h *HostHAL) Init(ctx context.Context) error {
	context.AfterFunc(ctx, h.cancel)
	return nil
}

// Start is a no-op; plugged cards are already reported.
func (h *HostHAL) Start() error { return nil }

// Stop is a no-op.
func (h *HostHAL) Stop() error { return nil }

// Close ends every pending wait.
func (h *HostHAL) Close() error {
	h.cancel()
	return nil
}

// Devices returns the plugged cards.
func (h *HostHAL) Devices() []hal.DeviceInfo {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	out := make([]hal.DeviceInfo, 0, len(h.cards))
	for _, c := range h.cards {
		out = append(out, c.Info())
	}
	return out
}

// Card returns the card at addr.
func (h *HostHAL) Card(addr hal.DeviceAddress) *Card {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.cards[addr]
}

// BulkTransfer services a transfer on an emulated card. Data IN transfers
// block until the card receives data or ctx is done.
func (h *HostHAL) BulkTransfer(ctx context.Context, addr hal.DeviceAddress, endpoint uint8, data []byte) (int, error) {
	if ctx.Err() != nil {
		return 0, pkg.ErrCancelled
	}
	card := h.Card(addr)
	if card == nil {
		return 0, pkg.ErrNoDevice
	}

	// Unplugging ends blocked reads.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	return card.transfer(ctx, endpoint, data)
}

// ClaimInterface records a claim on an emulated card.
func (h *HostHAL) ClaimInterface(addr hal.DeviceAddress, iface uint8) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.cards[addr]; !ok {
		return pkg.ErrNoDevice
	}
	if iface >= 32 {
		return pkg.ErrInvalidParameter
	}
	h.claimed[addr] |= 1 << iface
	return nil
}

// ReleaseInterface drops a claim.
func (h *HostHAL) ReleaseInterface(addr hal.DeviceAddress, iface uint8) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.cards[addr]; !ok {
		return pkg.ErrNoDevice
	}
	if iface >= 32 {
		return pkg.ErrInvalidParameter
	}
	h.claimed[addr] &^= 1 << iface
	return nil
}

// Claimed reports whether an interface on addr is claimed.
func (h *HostHAL) Claimed(addr hal.DeviceAddress, iface uint8) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.claimed[addr]&(1<<iface) != 0
}

// WaitForConnection returns the next plugged card.
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

// WaitForDisconnection returns the next unplugged card's address.
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
