// Package pkg provides shared utilities for the synccom driver.
//
// This package contains functionality used by every layer of the driver,
// from the frame buffers up to the command-line tool:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel errors for buffer, port and transport failures
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with a component attribute:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentPort, "port attached", "name", "synccom0")
//
// # Errors
//
// Errors are sentinel values compared with [errors.Is]:
//
//	if errors.Is(err, pkg.ErrNoBufferSpace) {
//	    // retry with a larger buffer
//	}
package pkg
