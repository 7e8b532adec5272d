// Package host runs the ledger engine behind a single global order.
//
// The engine itself does no locking. A host owns an engine, serializes
// every transition, persists or replicates the emitted events and
// publishes them on its Feed. Reads take a shared lock and so only ever
// observe committed states.
package host

import (
	"context"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/ledger"
)

// Ledger is the host interface consumed by services and transports.
type Ledger interface {
	// Execute applies cmd in the global order. The returned error is the
	// command's domain error, or a host failure.
	Execute(ctx context.Context, cmd ledger.Command) (ledger.Result, error)

	// ReadLicense resolves the (owner, app) slot in one atomic read and
	// returns the record together with the sequence it was read at.
	ReadLicense(owner domain.Address, app domain.AppHash) (*domain.License, uint64, bool)

	Get(id uint64) (*domain.License, error)

	// View and ViewOf read a record and its derived fields in one atomic
	// read. ViewOf also returns the sequence it was read at.
	View(id uint64) (*ledger.View, error)
	ViewOf(owner domain.Address, app domain.AppHash) (*ledger.View, uint64, bool)

	RoyaltyInfo(id uint64, salePrice uint64) (domain.Address, uint64, error)
	Stats() ledger.Stats

	// Feed returns the committed event stream.
	Feed() *Feed
}
