// Package sim provides an in-process HAL that emulates SyncCom cards.
//
// Each [Card] holds a register file reachable through the bulk command
// endpoints and a loopback line: frames written to the data OUT endpoint
// come back on the data IN endpoint, encoded as the card encodes received
// data. In framed mode every looped frame gains two status bytes and a
// byte-count record, as on real hardware. [Card.Receive] injects data as if
// it arrived on the line.
//
// # Usage
//
//	h := sim.NewHostHAL()
//	h.Plug(sim.NewCard())
//	hst := host.New(h, host.DefaultOptions())
//	if err := hst.Start(ctx); err != nil {
//	    return err
//	}
//
// The emulated transmit FIFO drains instantly and command execution never
// stalls unless [Card.SetBusy] says otherwise.
package sim
