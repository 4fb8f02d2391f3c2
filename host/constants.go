package host

import (
	"time"

	"github.com/ardnew/synccom/register"
)

// Card identity.
const (
	VendorID  = 0x2eb0
	ProductID = 0x0030
)

// MaxCards is the maximum number of attached cards.
const MaxCards = 64

// DefaultInterface is the interface claimed on each card.
const DefaultInterface = 0

// DefaultPortPrefix names ports synccom0, synccom1, ...
const DefaultPortPrefix = "synccom"

// ReadSize is the buffer length of each data IN transfer.
const ReadSize = register.MaxChunkSize

// transferAlign is the granularity of data OUT transfers.
const transferAlign = 4

// readRetryDelay spaces data IN retries after an unexpected error.
const readRetryDelay = 10 * time.Millisecond
