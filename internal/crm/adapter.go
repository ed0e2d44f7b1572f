package crm

import (
	"context"
	"net/http"
	"time"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/errors"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/lead"
)

// Result is the outcome of syncing one lead to one destination.
type Result struct {
	Synced   bool
	Skipped  bool
	RemoteID string
}

// Adapter owns search/create/update against one destination plus its
// token refresh flow.
type Adapter interface {
	Name() string
	Sync(ctx context.Context, l *lead.Lead) (Result, error)
}

// SourceURL encodes a lead's id into the canonical source field written
// to every destination. It doubles as the idempotency key for id-based
// dedup, independent of the destination's own primary key.
func SourceURL(id string) string {
	return "https://app.fluffychats.com/leads/" + id
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// withTokenRefresh runs one destination call and, when it fails with an
// auth-expiry signal, refreshes the token and retries that single call
// exactly once. A second auth failure after refresh is terminal; the
// caller does not retry further within the cycle.
func withTokenRefresh(ctx context.Context, attempt func(context.Context) (Result, error), refresh func(context.Context) error) (Result, error) {
	res, err := attempt(ctx)
	if err == nil || !errors.IsCategory(err, errors.ErrAuthExpired) {
		return res, err
	}

	if rerr := refresh(ctx); rerr != nil {
		return Result{}, errors.Wrap(rerr, "token refresh failed")
	}

	return attempt(ctx)
}
