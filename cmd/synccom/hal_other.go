//go:build !linux || !(386 || amd64 || arm || arm64 || loong64 || riscv64 || s390x)

package main

import (
	"fmt"
	"runtime"

	"github.com/ardnew/synccom/config"
	"github.com/ardnew/synccom/host/hal"
	"github.com/ardnew/synccom/pkg"
)

// newUSBHAL reports that no USB HAL exists for this platform.
func newUSBHAL(*config.Config) (hal.HostHAL, error) {
	return nil, fmt.Errorf("%w: no USB host support on %s/%s, use --simulate",
		pkg.ErrNotSupported, runtime.GOOS, runtime.GOARCH)
}
