// Package prof provides profiling hooks for the synccom command-line tool.
//
// It wraps [runtime/pprof] and is conditionally compiled using the "profile"
// build tag:
//
//	go build -tags profile ./cmd/synccom
//
// Without the tag every exported function is a no-op, so the CLI can always
// call [Start] and defer the returned stop function.
//
// A profiling session records a CPU profile for its lifetime and writes a heap
// snapshot when stopped:
//
//	stop, err := prof.Start(prof.Options{CPU: "cpu.prof", Heap: "heap.prof"})
//	if err != nil {
//	    return err
//	}
//	defer stop()
//
// Setting [Options.Contention] enables block and mutex sampling, which is
// useful for inspecting lock contention between the inbound worker and
// blocked readers.
package prof
