// Package port implements the frame and stream pipeline of one SyncCom
// channel.
//
// A [Port] owns both directions of the pipeline:
//
//   - Inbound, the transport hands raw chunks to [Port.Ingest]. Accepted
//     bytes accumulate in the stream buffer. In framed mode a background
//     worker reads frame byte counts from the card and slices complete
//     frames out of the stream onto the queued frame list.
//   - Outbound, [Port.Write] queues a frame and a background worker feeds
//     it to the transport in chunks that fit the card's transmit FIFO,
//     issuing the transmit command after the first chunk.
//
// Memory caps are admission limits. Inbound chunks that would exceed the
// input cap are dropped whole with a single warning per overflow episode;
// writes larger than the output cap are rejected with
// [pkg.ErrNoBufferSpace].
//
// The operating mode (framed or streaming) is derived from the last CCR0
// and CCR2 values written to or read from the card.
//
// [File] layers blocking, cancellable read and write semantics on top of a
// Port, and [Registry] tracks the ports attached to a process.
//
// # Lock order
//
// Inbound collection locks are taken in the order queued list, pending
// list, stream buffer; outbound ones in the order in-flight slot, queued
// list. No path holds more than two collection locks at once.
package port
