package pkg

import "errors"

// Buffer and pipeline errors.
var (
	// ErrNoMemory indicates a buffer could not be grown to hold the data.
	ErrNoMemory = errors.New("insufficient memory")

	// ErrNoBufferSpace indicates the caller's buffer or a memory cap cannot
	// accommodate the request.
	ErrNoBufferSpace = errors.New("no buffer space available")

	// ErrUnderflow indicates more bytes were requested than a buffer holds.
	ErrUnderflow = errors.New("buffer underflow")

	// ErrOverflow indicates admitted data would exceed a memory cap.
	ErrOverflow = errors.New("buffer overflow")

	// ErrCopyFault indicates the source or destination of a copy could not
	// be accessed in full.
	ErrCopyFault = errors.New("copy fault")
)

// Port control errors.
var (
	// ErrTimeout indicates the command register busy bit never cleared.
	ErrTimeout = errors.New("command timeout")

	// ErrInvalidModifier indicates an unsupported transmit modifier combination.
	ErrInvalidModifier = errors.New("invalid transmit modifier")

	// ErrNotSupported indicates an operation not valid in the current mode.
	ErrNotSupported = errors.New("not supported")

	// ErrWouldBlock indicates a non-blocking call found nothing to do.
	ErrWouldBlock = errors.New("operation would block")

	// ErrInterrupted indicates a blocking call was cancelled before it
	// changed any state.
	ErrInterrupted = errors.New("interrupted")

	// ErrClosed indicates the port or file has been closed.
	ErrClosed = errors.New("closed")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrAlreadyRunning indicates a worker is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning indicates a worker is not running.
	ErrNotRunning = errors.New("not running")
)

// USB transport errors.
var (
	// ErrStall indicates an endpoint stall condition.
	ErrStall = errors.New("endpoint stalled")

	// ErrCancelled indicates a cancelled transfer.
	ErrCancelled = errors.New("transfer cancelled")

	// ErrTransferTimeout indicates a USB transfer timed out.
	ErrTransferTimeout = errors.New("transfer timeout")

	// ErrShortTransfer indicates a transfer moved fewer bytes than expected.
	ErrShortTransfer = errors.New("short transfer")

	// ErrProtocol indicates a malformed response from the card.
	ErrProtocol = errors.New("protocol error")

	// ErrNoDevice indicates the device is not present.
	ErrNoDevice = errors.New("device not present")

	// ErrBusy indicates the resource is busy.
	ErrBusy = errors.New("resource busy")
)

// TransferStatus represents the completion status of a USB transfer.
type TransferStatus int

// Transfer status values.
const (
	TransferStatusSuccess   TransferStatus = iota // Transfer completed successfully
	TransferStatusError                           // Transfer failed with error
	TransferStatusStall                           // Endpoint stalled
	TransferStatusTimeout                         // Transfer timed out
	TransferStatusCancelled                       // Transfer was cancelled
	TransferStatusNoDevice                        // Device disconnected
)

// String returns a string representation of the transfer status.
func (s TransferStatus) String() string {
	switch s {
	case TransferStatusSuccess:
		return "success"
	case TransferStatusError:
		return "error"
	case TransferStatusStall:
		return "stall"
	case TransferStatusTimeout:
		return "timeout"
	case TransferStatusCancelled:
		return "cancelled"
	case TransferStatusNoDevice:
		return "no-device"
	default:
		return "unknown"
	}
}

// Error returns the corresponding error for the transfer status.
func (s TransferStatus) Error() error {
	switch s {
	case TransferStatusSuccess:
		return nil
	case TransferStatusStall:
		return ErrStall
	case TransferStatusTimeout:
		return ErrTransferTimeout
	case TransferStatusCancelled:
		return ErrCancelled
	case TransferStatusNoDevice:
		return ErrNoDevice
	default:
		return ErrProtocol
	}
}
