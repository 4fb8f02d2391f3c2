// Package host attaches SyncCom cards to [port.Port] instances.
//
// It is platform-agnostic and reaches the hardware through the
// [hal.HostHAL] interface defined in the github.com/ardnew/synccom/host/hal
// package. A [Host] watches the HAL for card arrivals and removals. For
// every matching card it claims the interface and builds a port whose
// register traffic runs over the bulk command endpoints. It then starts a
// reader that feeds the data IN endpoint into the port.
//
// # Endpoints
//
//   - 0x01 / 0x81: register commands and responses
//   - 0x82: received data, in chunks of at most 512 bytes
//   - 0x06: transmit data, padded to a 4-byte multiple
//
// # Example
//
//	hst := host.New(hal, host.DefaultOptions())
//	if err := hst.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer hst.Stop()
//
//	card, err := hst.WaitCard(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	f, _ := card.Port().Open(ctx, false)
//	f.Write([]byte("hello"))
//
// An emulated HAL for testing is available in
// [github.com/ardnew/synccom/host/hal/sim].
package host
