package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"bookstore/internal/domain"
	"bookstore/internal/platform/telemetry"
)

// Descriptions of the policies the pipeline knows how to apply. The policy
// store identifies rules by description, so these strings are the contract
// between the policy store and this service.
const (
	DescPublishersView                = "Allows publishers to list books they have published"
	DescPublisherAccessToSpecificBook = "Allows specific Publisher to list a specific book"
	DescPremiumOffersAllowed          = "Allows customers with specific value for yearsAsMember attribute to list premium offers"
	DescPremiumOffersDenied           = "Denies customers with specific value for yearsAsMember attribute to list premium offers"
)

var knownRules = map[string]domain.RuleKind{
	DescPublishersView:                domain.RulePublishersView,
	DescPublisherAccessToSpecificBook: domain.RulePublisherAccessToSpecificBook,
	DescPremiumOffersAllowed:          domain.RulePremiumOffersAllowed,
	DescPremiumOffersDenied:           domain.RulePremiumOffersDenied,
}

// RuleFor maps a policy description to its rule kind. Unknown descriptions are RuleNone.
func RuleFor(description string) domain.RuleKind {
	return knownRules[description]
}

// RuleResolver resolves determining policy ids to rule kinds. Resolutions,
// including misses, are cached for the life of the process; policy definitions
// change far less often than requests arrive. Lookup errors are not cached.
type RuleResolver struct {
	registry PolicyRegistry
	logger   *slog.Logger
	metrics  *telemetry.CatalogMetrics

	mu    sync.RWMutex
	cache map[string]domain.RuleKind
	group singleflight.Group
}

// NewRuleResolver creates a resolver backed by registry.
// The metrics parameter is optional; pass nil to skip metric recording.
func NewRuleResolver(registry PolicyRegistry, logger *slog.Logger, m *telemetry.CatalogMetrics) *RuleResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleResolver{
		registry: registry,
		logger:   logger,
		metrics:  m,
		cache:    make(map[string]domain.RuleKind),
	}
}

// Resolve returns the rule kind of policyID. An empty id, a policy the
// registry does not know, and a description outside the known set all resolve
// to RuleNone. A registry failure returns an error wrapping
// domain.ErrServiceUnavailable.
func (r *RuleResolver) Resolve(ctx context.Context, policyID string) (domain.RuleKind, error) {
	if policyID == "" {
		return domain.RuleNone, nil
	}

	r.mu.RLock()
	kind, ok := r.cache[policyID]
	r.mu.RUnlock()
	if ok {
		r.record(ctx, "hit")
		return kind, nil
	}

	v, err, _ := r.group.Do(policyID, func() (any, error) {
		// The lookup is shared by every waiter on policyID and outlives any one
		// of them.
		desc, found, err := r.registry.DescribePolicy(context.WithoutCancel(ctx), policyID)
		if err != nil {
			return domain.RuleNone, err
		}
		kind := domain.RuleNone
		if found {
			kind = RuleFor(desc)
		} else {
			r.logger.Debug("determining policy has no description", "policy_id", policyID)
		}

		r.mu.Lock()
		r.cache[policyID] = kind
		r.mu.Unlock()
		return kind, nil
	})
	if err != nil {
		r.record(ctx, "error")
		if errors.Is(err, domain.ErrServiceUnavailable) {
			return domain.RuleNone, fmt.Errorf("describing policy %q: %w", policyID, err)
		}
		return domain.RuleNone, fmt.Errorf("describing policy %q: %w: %v", policyID, domain.ErrServiceUnavailable, err)
	}

	kind = v.(domain.RuleKind)
	if kind == domain.RuleNone {
		r.record(ctx, "miss")
	} else {
		r.record(ctx, "fetched")
	}
	return kind, nil
}

// Cached returns the number of cached resolutions.
func (r *RuleResolver) Cached() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *RuleResolver) record(ctx context.Context, result string) {
	if r.metrics != nil {
		r.metrics.RecordPolicyLookup(ctx, result)
	}
}
