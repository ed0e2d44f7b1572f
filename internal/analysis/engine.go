package analysis

import (
	"context"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/errors"
)

// Provider is one AI completion backend. A provider gets exactly one
// attempt per session; recovery is the engine's job, by moving down the
// chain.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// Engine runs the provider chain in order until one returns a response
// that parses and validates. A malformed response counts the same as a
// transport failure: skip to the next provider.
type Engine struct {
	providers []Provider
	schema    *jsonschema.Schema
}

func NewEngine(providers []Provider) (*Engine, error) {
	if len(providers) == 0 {
		return nil, errors.InvalidInput("analysis engine needs at least one provider")
	}

	schema, err := compileResultSchema()
	if err != nil {
		return nil, err
	}

	return &Engine{providers: providers, schema: schema}, nil
}

func (e *Engine) Analyze(ctx context.Context, in Input) (*Result, error) {
	if strings.TrimSpace(in.Transcript) == "" {
		return nil, errors.InvalidInput("empty transcript")
	}

	user := buildUserPrompt(in)

	var lastErr error
	for _, provider := range e.providers {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		raw, err := provider.Complete(ctx, systemPrompt, user)
		if err != nil {
			slog.Warn("Analysis provider failed", "provider", provider.Name(), "session_id", in.SessionID, "error", err)
			lastErr = err
			continue
		}

		result, err := parseResult(e.schema, raw)
		if err != nil {
			slog.Warn("Analysis response rejected", "provider", provider.Name(), "session_id", in.SessionID, "error", err)
			lastErr = err
			continue
		}

		if !fieldPresent(result.Phone) && in.Phone != "" {
			result.Phone = in.Phone
		}
		result.Enrich()

		slog.Info("Analysis completed", "provider", provider.Name(), "session_id", in.SessionID,
			"score", result.Score, "completeness", result.Completeness)
		return result, nil
	}

	return nil, errors.Wrap(lastErr, "all analysis providers failed")
}
