package fetch

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// Status classifies one fetch attempt.
type Status int

const (
	// StatusOK means a document was retrieved and parsed.
	StatusOK Status = iota
	// StatusBlocked means an anti-automation defense was detected.
	StatusBlocked
	// StatusNetworkError means the request failed at the transport level.
	StatusNetworkError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBlocked:
		return "blocked"
	case StatusNetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// Result is the outcome of one fetch attempt. Doc is non-nil only for
// StatusOK.
type Result struct {
	Status     Status
	Doc        *goquery.Document
	BlockType  BlockType
	StatusCode int
	Err        error
}

// Fetcher retrieves one document using the given request identity.
type Fetcher interface {
	Fetch(ctx context.Context, locator string, id Identity) Result
}
