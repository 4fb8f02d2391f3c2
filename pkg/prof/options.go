package prof

// Options selects what a profiling session records.
type Options struct {
	// CPU is the path of the CPU profile. Empty disables CPU profiling.
	CPU string

	// Heap is the path of the heap snapshot written when the session stops.
	Heap string

	// Addr, when set, serves /debug/pprof/ on the given TCP address.
	Addr string

	// Contention enables block and mutex profiling for the session.
	Contention bool
}

// Empty reports whether opts requests no profiling at all.
func (o Options) Empty() bool {
	return o.CPU == "" && o.Heap == "" && o.Addr == "" && !o.Contention
}
