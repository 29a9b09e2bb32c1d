package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bookstore/internal/catalog"
	"bookstore/internal/domain"
	"bookstore/internal/platform/telemetry"
)

// Evaluation modes, used as log and metric labels.
const (
	ModeSingle = "single"
	ModeBatch  = "batch"
)

// Config wires an Authorizer.
type Config struct {
	Store        *catalog.Store
	Decisions    DecisionService
	Registry     PolicyRegistry
	Capabilities Capabilities
	Resources    Resources
	Logger       *slog.Logger
	Metrics      *telemetry.CatalogMetrics // optional
}

// Authorizer runs the whole pipeline: identity to query, query to verdict,
// verdict to visible items.
type Authorizer struct {
	builder   *QueryBuilder
	decisions DecisionService
	interp    *Interpreter
	recon     *Reconciler
	caps      Capabilities
	logger    *slog.Logger
	metrics   *telemetry.CatalogMetrics
}

// New creates an Authorizer from cfg.
func New(cfg Config) *Authorizer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rules := NewRuleResolver(cfg.Registry, logger, cfg.Metrics)
	return &Authorizer{
		builder:   NewQueryBuilder(cfg.Capabilities, cfg.Resources),
		decisions: cfg.Decisions,
		interp:    NewInterpreter(cfg.Store, rules, cfg.Capabilities, logger),
		recon:     NewReconciler(cfg.Store, rules),
		caps:      cfg.Capabilities,
		logger:    logger,
		metrics:   cfg.Metrics,
	}
}

// Mode reports which evaluation mode id is served with.
func (a *Authorizer) Mode(id domain.Identity) string {
	if id.Role == domain.RolePublisher && a.caps.SupportsBatch {
		return ModeBatch
	}
	return ModeSingle
}

// VisibleItems returns the catalog items id may see. Decision service failures
// are returned as errors wrapping domain.ErrServiceUnavailable; they are never
// turned into an ALLOW or DENY.
func (a *Authorizer) VisibleItems(ctx context.Context, id domain.Identity) ([]domain.Item, error) {
	mode := a.Mode(id)

	var (
		items []domain.Item
		err   error
	)
	if mode == ModeBatch {
		items, err = a.batch(ctx, id)
	} else {
		items, err = a.single(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	if a.metrics != nil {
		a.metrics.RecordItemsReturned(ctx, mode, len(items))
	}
	a.logger.Debug("visible items resolved",
		"username", id.Username,
		"role", id.Role.String(),
		"mode", mode,
		"count", len(items),
	)
	return items, nil
}

func (a *Authorizer) single(ctx context.Context, id domain.Identity) ([]domain.Item, error) {
	q := a.builder.Single(id)
	a.logger.Debug("authorization request",
		"username", id.Username,
		"action", q.Action.String(),
		"resource", q.Resource.ID,
		"region", q.Context[domain.ContextRegion],
	)

	start := time.Now()
	res, err := a.decisions.Evaluate(ctx, q)
	a.recordCall(ctx, ModeSingle, err, start)
	if err != nil {
		return nil, unavailable("evaluating authorization request", err)
	}

	a.recordDecision(ctx, ModeSingle, res.Decision)
	a.logger.Debug("authorization response",
		"decision", res.Decision.String(),
		"policy_id", res.PolicyID,
	)
	return a.interp.Interpret(ctx, id, res)
}

func (a *Authorizer) batch(ctx context.Context, id domain.Identity) ([]domain.Item, error) {
	b := a.builder.Batch(id)
	a.logger.Debug("batch authorization request",
		"username", id.Username,
		"requests", len(b.Queries),
	)

	start := time.Now()
	results, err := a.decisions.EvaluateBatch(ctx, b)
	a.recordCall(ctx, ModeBatch, err, start)
	if err != nil {
		return nil, unavailable("evaluating batch authorization request", err)
	}

	for _, res := range results {
		a.recordDecision(ctx, ModeBatch, res.Decision)
		a.logger.Debug("batch authorization result",
			"resource", res.Resource,
			"decision", res.Decision.String(),
			"policy_id", res.PolicyID,
		)
	}
	return a.recon.Reconcile(ctx, id, results)
}

func (a *Authorizer) recordCall(ctx context.Context, mode string, err error, start time.Time) {
	if a.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	a.metrics.RecordDecisionCall(ctx, mode, result, time.Since(start).Seconds())
}

func (a *Authorizer) recordDecision(ctx context.Context, mode string, d domain.Decision) {
	if a.metrics != nil {
		a.metrics.RecordDecision(ctx, mode, d.String())
	}
}

func unavailable(op string, err error) error {
	if errors.Is(err, domain.ErrServiceUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrServiceUnavailable, err)
}
