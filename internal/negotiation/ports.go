package negotiation

import (
	"context"

	"github.com/Jayesh445/VeriChain-sub000/internal/collector"
	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
)

// Directory lists the vendors that can be solicited for a category.
type Directory interface {
	ActiveVendors(ctx context.Context, category string) ([]domain.Vendor, error)
}

// ItemCatalog resolves demand items. Unknown ids yield domain.ErrItemNotFound.
type ItemCatalog interface {
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)
}

// Committer performs the order side effect of an approved session.
// Quantity is the session's demanded quantity.
type Committer interface {
	CommitOrder(ctx context.Context, sessionID, itemID string, quantity int, proposal domain.VendorProposal) (orderID string, err error)
}

// Notifier delivers orchestrator events.
type Notifier interface {
	EmitNotification(ctx context.Context, event domain.Event) error
}

// Archiver persists terminal session outcomes.
type Archiver interface {
	ArchiveSession(ctx context.Context, snap domain.SessionSnapshot) error
}

// ArchiveReader loads archived sessions. Archivers that implement it let
// decisions on pruned sessions report the recorded outcome.
type ArchiveReader interface {
	GetArchivedSession(ctx context.Context, id string) (*domain.SessionSnapshot, error)
}

// ProposalCollector gathers vendor proposals for one session.
type ProposalCollector interface {
	Collect(ctx context.Context, req collector.Request) collector.Result
}
