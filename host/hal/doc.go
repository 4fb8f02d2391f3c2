// Package hal defines the Hardware Abstraction Layer between the card
// driver and the platform's USB stack.
//
// The HAL only moves bytes: it reports device arrival and removal, claims
// interfaces and carries bulk transfers. The register protocol, the
// inbound chunk format and everything else specific to the card live in
// the host package.
//
// # Implementations
//
//   - [github.com/ardnew/synccom/host/hal/linux] drives real cards through
//     Linux usbfs.
//   - [github.com/ardnew/synccom/host/hal/sim] emulates a card in process
//     for tests and demonstrations.
//
// # Example
//
//	h := linux.NewHostHAL(linux.Options{Filter: hal.Filter{VendorID: 0x2eb0}})
//	if err := h.Init(ctx); err != nil {
//	    return err
//	}
//	if err := h.Start(); err != nil {
//	    return err
//	}
//	info, err := h.WaitForConnection(ctx)
package hal
