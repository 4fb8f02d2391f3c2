//go:build linux && (386 || amd64 || arm || arm64 || loong64 || riscv64 || s390x)

package main

import (
	"github.com/ardnew/synccom/config"
	"github.com/ardnew/synccom/host/hal"
	"github.com/ardnew/synccom/host/hal/linux"
)

// newUSBHAL returns the usbfs HAL.
func newUSBHAL(c *config.Config) (hal.HostHAL, error) {
	return linux.NewHostHAL(linux.Options{
		Filter:          c.Filter(),
		TransferTimeout: c.Transport.TransferTimeout,
	}), nil
}
