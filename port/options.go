package port

import (
	"time"

	"github.com/ardnew/synccom/register"
)

// NoChange leaves a memory cap unchanged in [Port.SetMemoryCap].
const NoChange = -1

// DefaultMemoryCap is the default byte limit for each direction.
const DefaultMemoryCap = 1000000

// StatusLength is the number of status bytes the card appends to each
// received frame.
const StatusLength = 2

// MaxPendingFrames bounds the number of frame byte counts held while their
// data is still arriving.
const MaxPendingFrames = 1000

// DefaultTimeoutPolls is the number of STAR reads made while waiting for a
// previous command to finish.
const DefaultTimeoutPolls = 50

// MemoryCap holds the admission limits of each direction in bytes.
type MemoryCap struct {
	Input  int `yaml:"input"`
	Output int `yaml:"output"`
}

// Config configures a [Port].
type Config struct {
	// MemoryCap sets the initial admission limits.
	MemoryCap MemoryCap

	// AppendStatus keeps the trailing status bytes of each frame.
	AppendStatus bool

	// AppendTimestamp appends each frame's completion time on read.
	AppendTimestamp bool

	// IgnoreTimeout writes the command register without waiting for the
	// previous command to finish.
	IgnoreTimeout bool

	// RxMultiple lets one read return several frames.
	RxMultiple bool

	// TxModifiers selects how frames are transmitted.
	TxModifiers register.TxModifiers

	// TimeoutPolls is the number of STAR reads before a command times out.
	TimeoutPolls int

	// PollInterval is how often the workers poll the card when no chunk
	// or write has woken them.
	PollInterval time.Duration

	// Inspector, if set, examines every inbound chunk for corruption.
	Inspector ChunkInspector

	// Now stamps completed frames. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns the configuration a freshly attached port uses.
func DefaultConfig() Config {
	return Config{
		MemoryCap:    MemoryCap{Input: DefaultMemoryCap, Output: DefaultMemoryCap},
		TxModifiers:  register.XF,
		TimeoutPolls: DefaultTimeoutPolls,
		PollInterval: 20 * time.Millisecond,
		Now:          time.Now,
	}
}

// InitOptions selects what [Port.Init] programs.
type InitOptions struct {
	// ClockBits, if non-nil, is programmed into the clock generator.
	ClockBits *register.ClockBits

	// Registers are written after the clock. Slots set to [register.Skip]
	// are left alone.
	Registers register.Registers
}

// DefaultInitOptions programs the default clock and registers.
func DefaultInitOptions() InitOptions {
	cb := register.DefaultClockBits
	return InitOptions{ClockBits: &cb, Registers: register.Defaults()}
}
