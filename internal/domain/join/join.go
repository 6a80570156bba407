// Package join looks up the records of other domains that belong to the
// same people as a selection.
package join

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/schoolboard/internal/domain/identity"
	"github.com/okian/schoolboard/internal/domain/model"
	"github.com/okian/schoolboard/internal/domain/record"
	"github.com/okian/schoolboard/pkg/logger"
	"github.com/okian/schoolboard/pkg/metrics"
)

// ErrNoSelection is returned when the selection is empty or none of the
// selected records carries an identifier.
var ErrNoSelection = errors.New("no selected records with an identifier")

// Datasets supplies the full record set of a domain and the registration
// resolver.
type Datasets interface {
	All(ctx context.Context, d model.Domain) ([]record.Record, error)
	Resolver(ctx context.Context) (identity.Resolver, error)
}

// Result holds the matches per target domain. Every requested target is
// present, possibly with an empty slice.
type Result struct {
	Identifiers int                              `json:"identifiers"`
	Matches     map[model.Domain][]record.Record `json:"matches"`
}

// Engine runs cross-domain joins.
type Engine struct {
	data Datasets
	log  logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New creates an Engine over data.
func New(data Datasets, opts ...Option) *Engine {
	e := &Engine{data: data, log: logger.Get()}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("join")
	return e
}

// Join extracts identifiers from selected (records of domain from) and
// returns, for each target, the records whose identifier is among them.
// A target that cannot be loaded yields an empty match list.
func (e *Engine) Join(ctx context.Context, from model.Domain, selected []record.Record, targets []model.Domain) (Result, error) {
	if identity.PolicyFor(from) == nil {
		metrics.RecordJoinRequest("invalid")
		return Result{}, fmt.Errorf("%w: %q", model.ErrUnknownDomain, from)
	}
	for _, t := range targets {
		if identity.PolicyFor(t) == nil {
			metrics.RecordJoinRequest("invalid")
			return Result{}, fmt.Errorf("%w: %q", model.ErrUnknownDomain, t)
		}
	}
	if len(selected) == 0 {
		metrics.RecordJoinRequest("no_selection")
		return Result{}, ErrNoSelection
	}

	res, err := e.data.Resolver(ctx)
	if err != nil {
		e.log.Warn(ctx, "id mapping unavailable, registration numbers stay unresolved", logger.Error(err))
		res = nil
	}

	keys := make(map[identity.Key]struct{}, len(selected))
	for _, r := range selected {
		if k, ok := identity.Extract(from, r, res); ok {
			keys[k] = struct{}{}
		}
	}
	if len(keys) == 0 {
		metrics.RecordJoinRequest("no_selection")
		return Result{}, ErrNoSelection
	}

	out := Result{Identifiers: len(keys), Matches: make(map[model.Domain][]record.Record, len(targets))}
	for _, t := range targets {
		matched := []record.Record{}
		all, err := e.data.All(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			e.log.Warn(ctx, "join target unavailable",
				logger.String("domain", string(t)),
				logger.Error(err),
			)
		}
		for _, r := range all {
			if k, ok := identity.Extract(t, r, res); ok {
				if _, hit := keys[k]; hit {
					matched = append(matched, r)
				}
			}
		}
		out.Matches[t] = matched
	}

	metrics.RecordJoinRequest("ok")
	e.log.Debug(ctx, "join complete",
		logger.String("from", string(from)),
		logger.Int("identifiers", len(keys)),
		logger.Int("targets", len(targets)),
	)
	return out, nil
}
