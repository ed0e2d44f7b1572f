package lead

import "context"

// Store is the durable persistence layer for leads. Upsert is keyed by
// ID; since IDs are fresh per harvested session, collisions only happen
// on manual re-submission.
type Store interface {
	Upsert(ctx context.Context, l *Lead) error
	Get(ctx context.Context, id string) (*Lead, error)
	List(ctx context.Context, limit int) ([]*Lead, error)

	// MarkSyncedTo appends destination to the lead's synced_to set if
	// absent. Not atomic against concurrent writers; the scheduler
	// serializes processing so there are none within a cycle.
	MarkSyncedTo(ctx context.Context, id, destination string) error

	// ConversationExists reports whether a lead with byte-identical
	// transcript text is already persisted. This is the deduplication
	// guard's only query.
	ConversationExists(ctx context.Context, conversation string) (bool, error)
}
