// Package frame provides the byte containers of the synccom pipeline.
//
// Two types share one growable buffer implementation:
//
//   - [Frame] holds one discrete unit of framed-mode payload whose total
//     size is known when the frame is created.
//   - [Stream] is the unbounded accumulator of raw inbound bytes. In
//     streaming mode it is the user-visible data; in framed mode it is the
//     staging area complete frames are sliced out of.
//
// Buffers grow to the exact size required rather than geometrically, and
// removing data compacts the remainder to the front of the buffer. Frames
// stay small, so the O(n) shift is cheaper than ring-buffer bookkeeping.
//
// [List] is an ordered, memory-accounted queue of frames. Its reported
// memory usage always equals the sum of the member frames' lengths.
//
// None of the types in this package are safe for concurrent use; the port
// layer serialises access with its own locks.
package frame
