// Package register describes the SyncCom register file and the command
// channel used to reach it.
//
// The card exposes its framer registers on BAR 0 and its feature control
// register (FCR) on BAR 2. Registers are read and written through a single
// in-order bulk command pipe, so every [Access] implementation must
// serialise operations: interleaved commands would pair requests with the
// wrong responses.
//
// # Command encoding
//
// A read is the 3-byte command {0x6b, addr_hi, addr_lo} followed by a
// 4-byte big-endian response. A write is the 7-byte command
// {0x6a, addr_hi, addr_lo, v31..24, v23..16, v15..8, v7..0}. BAR 0 offsets
// are sent as 0x8000 | offset<<1; BAR 2 offsets are sent unchanged.
//
// # Snapshots
//
// [Registers] mirrors the card's register block slot for slot, using
// [Skip] for registers that should be left alone and [Fetch] for registers
// whose current value should be read back.
package register
