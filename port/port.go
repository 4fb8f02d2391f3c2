package port

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ardnew/synccom/frame"
	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/register"
)

// Transmitter submits outbound bytes to the card.
type Transmitter interface {
	// Transmit sends p to the card's transmit FIFO.
	Transmit(ctx context.Context, p []byte) error
}

// Port is one SyncCom channel: its inbound and outbound pipelines, memory
// caps and mode state.
type Port struct {
	name string
	regs register.Access
	tx   Transmitter
	cfg  Config

	// Inbound collections
	queuedIMutex   sync.Mutex
	queuedIFrames  *frame.List
	pendingIMutex  sync.Mutex
	pendingIFrames *frame.List
	istreamMutex   sync.Mutex
	istream        *frame.Stream

	// assembleMutex orders frame completion so frames reach the queued
	// list in the order their byte counts arrived.
	assembleMutex sync.Mutex

	// countMutex serialises byte-count reads against receive purges.
	countMutex sync.Mutex

	// Outbound collections
	queuedOMutex  sync.Mutex
	queuedOFrames *frame.List
	pendingOMutex sync.Mutex
	pendingOFrame *frame.Frame

	// txMutex serialises transmit steps against transmit purges.
	txMutex sync.Mutex

	// clockMutex guards clock programming.
	clockMutex sync.Mutex

	// Settings
	settingsMutex   sync.RWMutex
	memoryCap       MemoryCap
	appendStatus    bool
	appendTimestamp bool
	ignoreTimeout   bool
	rxMultiple      bool
	txModifiers     register.TxModifiers

	// Last known configuration register values
	ccr0 atomic.Uint32
	ccr2 atomic.Uint32

	// rejecting latches the input overflow warning until data is admitted.
	rejecting atomic.Bool

	iframeNumber atomic.Uint64
	oframeNumber atomic.Uint64

	stats counters

	// Wake-ups
	input        notifier
	output       notifier
	countKick    chan struct{}
	transmitKick chan struct{}

	// State
	running bool
	closed  bool
	mutex   sync.Mutex
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

// New creates a port named name that reaches the card's registers through
// regs and transmits through tx.
func New(name string, regs register.Access, tx Transmitter, cfg Config) *Port {
	if cfg.TimeoutPolls <= 0 {
		cfg.TimeoutPolls = DefaultTimeoutPolls
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.Now == nil {
		cfg.Now = DefaultConfig().Now
	}
	if !cfg.TxModifiers.Valid() {
		pkg.LogWarn(pkg.ComponentPort, "invalid transmit modifiers, using XF",
			"port", name, "modifiers", cfg.TxModifiers)
		cfg.TxModifiers = register.XF
	}

	p := &Port{
		name:            name,
		regs:            regs,
		tx:              tx,
		cfg:             cfg,
		queuedIFrames:   frame.NewList(),
		pendingIFrames:  frame.NewList(),
		istream:         frame.NewStream(),
		queuedOFrames:   frame.NewList(),
		memoryCap:       cfg.MemoryCap,
		appendStatus:    cfg.AppendStatus,
		appendTimestamp: cfg.AppendTimestamp,
		ignoreTimeout:   cfg.IgnoreTimeout,
		rxMultiple:      cfg.RxMultiple,
		txModifiers:     cfg.TxModifiers,
		countKick:       make(chan struct{}, 1),
		transmitKick:    make(chan struct{}, 1),
	}

	defaults := register.Defaults()
	p.ccr0.Store(uint32(defaults[register.SlotCCR0]))
	p.ccr2.Store(uint32(defaults[register.SlotCCR2]))
	return p
}

// Name returns the port's name.
func (p *Port) Name() string { return p.name }

// Start launches the byte-count and transmit workers.
func (p *Port) Start(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed {
		return pkg.ErrClosed
	}
	if p.running {
		return pkg.ErrAlreadyRunning
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.workers.Add(2)
	go p.byteCountLoop(ctx)
	go p.transmitLoop(ctx)

	pkg.LogInfo(pkg.ComponentPort, "port started", "port", p.name)
	return nil
}

// Stop halts the workers and waits for them to exit. Queued data is kept.
func (p *Port) Stop() error {
	p.mutex.Lock()
	if !p.running {
		p.mutex.Unlock()
		return nil
	}
	p.running = false
	p.cancel()
	p.mutex.Unlock()

	p.workers.Wait()
	pkg.LogInfo(pkg.ComponentPort, "port stopped", "port", p.name)
	return nil
}

// IsRunning reports whether the workers are running.
func (p *Port) IsRunning() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.running
}

// Close stops the port and wakes every blocked reader and writer.
func (p *Port) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}

	p.mutex.Lock()
	p.closed = true
	p.mutex.Unlock()

	p.input.broadcast()
	p.output.broadcast()
	return nil
}

// IsClosed reports whether Close has been called.
func (p *Port) IsClosed() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.closed
}

// kick wakes a worker without blocking.
func kick(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// ===========================================================================
// Settings
// ===========================================================================

// IsStreaming reports whether the last known CCR0 and CCR2 values select
// streaming mode.
func (p *Port) IsStreaming() bool {
	return register.IsStreaming(p.ccr0.Load(), p.ccr2.Load())
}

// MemoryCap returns the admission limits.
func (p *Port) MemoryCap() MemoryCap {
	p.settingsMutex.RLock()
	defer p.settingsMutex.RUnlock()
	return p.memoryCap
}

// SetMemoryCap updates the admission limits. A negative field such as
// [NoChange] leaves that limit alone. Data already queued is not evicted.
func (p *Port) SetMemoryCap(c MemoryCap) {
	p.settingsMutex.Lock()
	if c.Input >= 0 {
		p.memoryCap.Input = c.Input
	}
	if c.Output >= 0 {
		p.memoryCap.Output = c.Output
	}
	cur := p.memoryCap
	p.settingsMutex.Unlock()

	pkg.LogDebug(pkg.ComponentPort, "memory cap", "port", p.name,
		"input", cur.Input, "output", cur.Output)

	// A raised output cap may unblock writers.
	p.output.broadcast()
}

// AppendStatus reports whether status bytes are kept. It is always false
// in streaming mode.
func (p *Port) AppendStatus() bool {
	p.settingsMutex.RLock()
	defer p.settingsMutex.RUnlock()
	return p.appendStatus && !p.IsStreaming()
}

// SetAppendStatus selects whether status bytes are kept. Enabling it in
// streaming mode fails with [pkg.ErrNotSupported].
func (p *Port) SetAppendStatus(v bool) error {
	if v && p.IsStreaming() {
		return pkg.ErrNotSupported
	}
	p.settingsMutex.Lock()
	p.appendStatus = v
	p.settingsMutex.Unlock()
	pkg.LogDebug(pkg.ComponentPort, "append status", "port", p.name, "value", v)
	return nil
}

// AppendTimestamp reports whether frames carry their completion time. It
// is always false in streaming mode.
func (p *Port) AppendTimestamp() bool {
	p.settingsMutex.RLock()
	defer p.settingsMutex.RUnlock()
	return p.appendTimestamp && !p.IsStreaming()
}

// SetAppendTimestamp selects whether frames carry their completion time.
// Enabling it in streaming mode fails with [pkg.ErrNotSupported].
func (p *Port) SetAppendTimestamp(v bool) error {
	if v && p.IsStreaming() {
		return pkg.ErrNotSupported
	}
	p.settingsMutex.Lock()
	p.appendTimestamp = v
	p.settingsMutex.Unlock()
	pkg.LogDebug(pkg.ComponentPort, "append timestamp", "port", p.name, "value", v)
	return nil
}

// IgnoreTimeout reports whether command writes skip the busy check.
func (p *Port) IgnoreTimeout() bool {
	p.settingsMutex.RLock()
	defer p.settingsMutex.RUnlock()
	return p.ignoreTimeout
}

// SetIgnoreTimeout selects whether command writes skip the busy check.
func (p *Port) SetIgnoreTimeout(v bool) {
	p.settingsMutex.Lock()
	p.ignoreTimeout = v
	p.settingsMutex.Unlock()
	pkg.LogDebug(pkg.ComponentPort, "ignore timeout", "port", p.name, "value", v)
}

// RxMultiple reports whether one read may return several frames.
func (p *Port) RxMultiple() bool {
	p.settingsMutex.RLock()
	defer p.settingsMutex.RUnlock()
	return p.rxMultiple
}

// SetRxMultiple selects whether one read may return several frames.
func (p *Port) SetRxMultiple(v bool) {
	p.settingsMutex.Lock()
	p.rxMultiple = v
	p.settingsMutex.Unlock()
	pkg.LogDebug(pkg.ComponentPort, "rx multiple", "port", p.name, "value", v)
}

// TxModifiers returns the transmit modifiers.
func (p *Port) TxModifiers() register.TxModifiers {
	p.settingsMutex.RLock()
	defer p.settingsMutex.RUnlock()
	return p.txModifiers
}

// SetTxModifiers stores m. Unsupported combinations are rejected with
// [pkg.ErrInvalidModifier] and leave the current value in place.
func (p *Port) SetTxModifiers(m register.TxModifiers) error {
	if !m.Valid() {
		return pkg.ErrInvalidModifier
	}
	p.settingsMutex.Lock()
	p.txModifiers = m
	p.settingsMutex.Unlock()
	pkg.LogDebug(pkg.ComponentPort, "tx modifiers", "port", p.name, "value", m)
	return nil
}
