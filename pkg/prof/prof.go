//go:build profile

package prof

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"

	_ "net/http/pprof" // Register HTTP handlers at /debug/pprof/

	"github.com/ardnew/synccom/pkg"
)

// Enabled reports whether the binary was built with profiling support.
const Enabled = true

// ErrActive indicates a profiling session is already running.
var ErrActive = errors.New("profiling session already active")

var (
	// sessionMutex guards active.
	sessionMutex sync.Mutex

	// active is set while a session owns the CPU profiler.
	active bool
)

// Start begins a profiling session configured by opts and returns the
// function that ends it. The stop function is safe to call more than once.
func Start(opts Options) (func(), error) {
	sessionMutex.Lock()
	defer sessionMutex.Unlock()

	if active {
		return func() {}, ErrActive
	}

	var cpu *os.File
	if opts.CPU != "" {
		f, err := os.Create(opts.CPU)
		if err != nil {
			return func() {}, fmt.Errorf("create cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return func() {}, fmt.Errorf("start cpu profile: %w", err)
		}
		cpu = f
	}

	if opts.Contention {
		runtime.SetBlockProfileRate(1)
		runtime.SetMutexProfileFraction(1)
	}

	if opts.Addr != "" {
		ln, err := net.Listen("tcp", opts.Addr)
		if err != nil {
			pkg.LogWarn(pkg.ComponentCLI, "pprof listener failed", "addr", opts.Addr, "error", err)
		} else {
			go func() {
				if err := http.Serve(ln, nil); err != nil {
					pkg.LogDebug(pkg.ComponentCLI, "pprof server stopped", "error", err)
				}
			}()
			pkg.LogInfo(pkg.ComponentCLI, "pprof listening", "addr", ln.Addr().String())
		}
	}

	active = true

	var once sync.Once
	stop := func() {
		once.Do(func() {
			sessionMutex.Lock()
			defer sessionMutex.Unlock()

			if cpu != nil {
				pprof.StopCPUProfile()
				cpu.Close()
			}
			if opts.Heap != "" {
				if err := writeHeap(opts.Heap); err != nil {
					pkg.LogWarn(pkg.ComponentCLI, "heap profile failed", "path", opts.Heap, "error", err)
				}
			}
			if opts.Contention {
				runtime.SetBlockProfileRate(0)
				runtime.SetMutexProfileFraction(0)
			}
			active = false
		})
	}
	return stop, nil
}

// Active reports whether a profiling session is running.
func Active() bool {
	sessionMutex.Lock()
	defer sessionMutex.Unlock()
	return active
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	runtime.GC()
	return pprof.Lookup("heap").WriteTo(f, 0)
}
