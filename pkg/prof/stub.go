//go:build !profile

package prof

// Enabled reports whether the binary was built with profiling support.
const Enabled = false

// ErrActive is never returned when built without the "profile" tag.
var ErrActive error

// Start is a no-op when built without the "profile" tag.
func Start(_ Options) (func(), error) {
	return func() {}, nil
}

// Active always returns false when built without the "profile" tag.
func Active() bool {
	return false
}
