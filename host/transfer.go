package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/register"
)

// =============================================================================
// Register Commands
// =============================================================================

// commandPipe carries register commands over the card's command endpoints.
type commandPipe struct {
	card *Card
}

var _ register.Pipe = commandPipe{}

func (p commandPipe) WriteCommand(ctx context.Context, b []byte) (int, error) {
	return p.card.bulk(ctx, register.EndpointCommandOut, b)
}

func (p commandPipe) ReadResponse(ctx context.Context, b []byte) (int, error) {
	return p.card.bulk(ctx, register.EndpointCommandIn, b)
}

func (c *Card) bulk(ctx context.Context, endpoint uint8, data []byte) (int, error) {
	return c.host.hal.BulkTransfer(ctx, c.info.Address, endpoint, data)
}

// =============================================================================
// Data Transfers
// =============================================================================

// Transmit sends p to the transmit FIFO, zero-padded to a 4-byte multiple.
func (c *Card) Transmit(ctx context.Context, p []byte) error {
	buf := p
	if rem := len(p) % transferAlign; rem != 0 {
		buf = make([]byte, len(p)+transferAlign-rem)
		copy(buf, p)
	}

	n, err := c.bulk(ctx, register.EndpointDataOut, buf)
	if err != nil {
		return fmt.Errorf("transmit: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("transmit: %w: sent %d of %d bytes", pkg.ErrShortTransfer, n, len(buf))
	}
	return nil
}

// readLoop feeds data IN transfers to the port until ctx is done or the
// card goes away.
func (c *Card) readLoop(ctx context.Context) {
	defer c.reader.Done()

	buf := make([]byte, ReadSize)
	for {
		n, err := c.bulk(ctx, register.EndpointDataIn, buf)
		switch {
		case err == nil:
		case ctx.Err() != nil, errors.Is(err, pkg.ErrCancelled):
			return
		case errors.Is(err, pkg.ErrNoDevice):
			pkg.LogDebug(pkg.ComponentHost, "reader stopped, card gone",
				"port", c.port.Name())
			return
		case errors.Is(err, pkg.ErrTransferTimeout):
			continue
		default:
			pkg.LogWarn(pkg.ComponentHost, "data read failed",
				"port", c.port.Name(),
				"error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}

		if n == 0 {
			continue
		}

		payload, err := register.DecodeChunk(buf[:n])
		if err != nil {
			pkg.LogWarn(pkg.ComponentHost, "malformed chunk",
				"port", c.port.Name(),
				"length", n,
				"error", err)
			continue
		}
		c.port.Ingest(payload)
	}
}
