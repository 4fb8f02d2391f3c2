package port

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/register"
)

// GetRegister reads one register.
func (p *Port) GetRegister(ctx context.Context, bar register.BAR, offset uint32) (uint32, error) {
	v, err := p.regs.Get(ctx, bar, offset)
	if err != nil {
		return 0, err
	}
	p.track(bar, offset, v)
	return v, nil
}

// SetRegister writes one register. A command register write first waits
// for the previous command to finish and fails with [pkg.ErrTimeout] if it
// never does, unless ignore-timeout is set.
func (p *Port) SetRegister(ctx context.Context, bar register.BAR, offset uint32, value uint32) error {
	if bar == register.BAR0 && offset == register.CMDR && !p.IgnoreTimeout() {
		busy, err := p.commandBusy(ctx)
		if err != nil {
			return err
		}
		if busy {
			return pkg.ErrTimeout
		}
	}

	if err := p.regs.Set(ctx, bar, offset, value); err != nil {
		return err
	}
	p.track(bar, offset, value)
	return nil
}

// track mirrors writes and reads of the mode-selecting registers.
func (p *Port) track(bar register.BAR, offset uint32, value uint32) {
	if bar != register.BAR0 {
		return
	}
	var changed bool
	switch offset {
	case register.CCR0:
		changed = p.ccr0.Swap(value) != value
	case register.CCR2:
		changed = p.ccr2.Swap(value) != value
	default:
		return
	}
	if changed {
		pkg.LogDebug(pkg.ComponentPort, "configuration changed",
			"port", p.name, "streaming", p.IsStreaming())
		// Waiters re-evaluate readiness under the new mode.
		p.input.broadcast()
	}
}

// commandBusy polls STAR until the command-executing bit clears. It reports
// true if the bit is still set after the configured number of polls.
func (p *Port) commandBusy(ctx context.Context) (bool, error) {
	for i := 0; i < p.cfg.TimeoutPolls; i++ {
		star, err := p.regs.Get(ctx, register.BAR0, register.STAR)
		if err != nil {
			return false, fmt.Errorf("read status: %w", err)
		}
		if star&register.StarCommandExecuting == 0 {
			return false, nil
		}
	}
	return true, nil
}

// executeCommand writes cmd to the command register.
func (p *Port) executeCommand(ctx context.Context, cmd uint32) error {
	return p.SetRegister(ctx, register.BAR0, register.CMDR, cmd)
}

// RefreshMode reads CCR0 and CCR2 so the mode reflects the card's current
// configuration.
func (p *Port) RefreshMode(ctx context.Context) error {
	for _, off := range []uint32{register.CCR0, register.CCR2} {
		if _, err := p.GetRegister(ctx, register.BAR0, off); err != nil {
			return fmt.Errorf("refresh mode: %w", err)
		}
	}
	return nil
}

// GetRegisters reads every slot of regs that is set to [register.Fetch].
func (p *Port) GetRegisters(ctx context.Context, regs *register.Registers) error {
	for i := range regs {
		if register.IsReserved(i) || regs[i] != register.Fetch {
			continue
		}
		a := register.SlotAddress(i)
		v, err := p.GetRegister(ctx, a.BAR, a.Offset)
		if err != nil {
			return fmt.Errorf("get %s: %w", register.SlotName(i), err)
		}
		regs[i] = int64(v)
	}
	return nil
}

// SetRegisters writes every slot of regs that holds a value. Read-only and
// reserved slots are skipped. A command timeout does not stop the remaining
// writes but is reported once they are done.
func (p *Port) SetRegisters(ctx context.Context, regs register.Registers) error {
	stalled := false
	for i, v := range regs {
		if register.IsReserved(i) || v < 0 {
			continue
		}
		a := register.SlotAddress(i)
		if register.IsReadOnly(a.BAR, a.Offset) {
			continue
		}
		err := p.SetRegister(ctx, a.BAR, a.Offset, uint32(v))
		if errors.Is(err, pkg.ErrTimeout) {
			stalled = true
			continue
		}
		if err != nil {
			return fmt.Errorf("set %s: %w", register.SlotName(i), err)
		}
	}
	if stalled {
		return pkg.ErrTimeout
	}
	return nil
}

// SetClockBits programs cb into the card's clock generator through the FCR.
func (p *Port) SetClockBits(ctx context.Context, cb register.ClockBits) error {
	p.clockMutex.Lock()
	defer p.clockMutex.Unlock()

	fcr, err := p.regs.Get(ctx, register.BAR2, register.FCR)
	if err != nil {
		return fmt.Errorf("read fcr: %w", err)
	}
	for i, w := range register.ClockSequence(cb, fcr) {
		if err := p.regs.Set(ctx, register.BAR2, register.FCR, w); err != nil {
			return fmt.Errorf("clock word %d: %w", i, err)
		}
	}
	pkg.LogInfo(pkg.ComponentPort, "clock programmed", "port", p.name, "bits", cb.String())
	return nil
}

// Init programs the card for first use: clock, registers, then receiver
// and transmitter resets. It finishes by refreshing the mode.
func (p *Port) Init(ctx context.Context, opts InitOptions) error {
	if opts.ClockBits != nil {
		if err := p.SetClockBits(ctx, *opts.ClockBits); err != nil {
			return err
		}
	}
	if err := p.SetRegisters(ctx, opts.Registers); err != nil {
		return fmt.Errorf("init registers: %w", err)
	}
	if err := p.PurgeRx(ctx); err != nil {
		return err
	}
	if err := p.PurgeTx(ctx); err != nil {
		return err
	}
	if err := p.RefreshMode(ctx); err != nil {
		return err
	}
	pkg.LogInfo(pkg.ComponentPort, "port initialised",
		"port", p.name, "streaming", p.IsStreaming())
	return nil
}
