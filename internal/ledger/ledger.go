// Package ledger abstracts the distributed ledger that identity documents
// are published to. The core only needs resolve and publish; transport
// details, retries and backoff belong to the concrete client.
package ledger

import (
	"context"
	"errors"

	"github.com/trustmesh/ssi-bridge/internal/model"
)

var (
	// ErrNotFound indicates the identifier has never been published, or a
	// looked-up element of a resolved document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable indicates a transport or node failure. The core treats
	// it as terminal for the call; any retrying happens below this interface.
	ErrUnavailable = errors.New("ledger unavailable")
)

// Client is the narrow capability interface over the ledger. Resolve returns
// the latest published document together with the message id of the revision,
// which callers must pass back as the previous pointer on their next publish.
type Client interface {
	Resolve(ctx context.Context, did string) (model.Document, string, error)
	Publish(ctx context.Context, doc model.Document) (string, error)
}

// Config carries the node endpoints used to construct a client.
type Config struct {
	PrimaryNode string // main node endpoint for resolve and publish
	PermaNode   string // optional archival read-only endpoint
	Network     string // network identifier, e.g. "mainnet"
}
