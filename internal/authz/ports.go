// Package authz turns a caller identity into authorization queries, sends them
// to an external decision service, and applies the verdicts to the catalog.
package authz

import (
	"context"
	"fmt"
	"strings"

	"bookstore/internal/domain"
)

// DecisionService evaluates authorization queries. Implementations talk to an
// external policy engine; they must return an error wrapping
// domain.ErrServiceUnavailable on transport or protocol failure rather than
// inventing a verdict.
type DecisionService interface {
	// Evaluate answers a single query.
	Evaluate(ctx context.Context, q domain.Query) (domain.DecisionResult, error)
	// EvaluateBatch answers every query of b in one call. Each result names the
	// resource it belongs to; results are not correlated by position.
	EvaluateBatch(ctx context.Context, b domain.BatchQuery) ([]domain.DecisionResult, error)
}

// PolicyRegistry looks up policy definitions by id.
type PolicyRegistry interface {
	// DescribePolicy returns the policy's description. ok is false when the
	// registry has no such policy or the policy has no description.
	DescribePolicy(ctx context.Context, policyID string) (description string, ok bool, err error)
}

// Capabilities selects which parts of the pipeline a deployment enables.
type Capabilities struct {
	// SupportsBatch routes publishers through per-resource batch evaluation.
	SupportsBatch bool
	// SupportsPremiumFiltering asks ViewWithPremiumOffers for customers with a
	// known tenure and honours the premium-offers-denied rule.
	SupportsPremiumFiltering bool
	// SupportsPublisherScoping narrows publisher queries to their own item and
	// filters publisher results to the books they published.
	SupportsPublisherScoping bool
}

// AllCapabilities enables every evaluation mode.
var AllCapabilities = Capabilities{
	SupportsBatch:            true,
	SupportsPremiumFiltering: true,
	SupportsPublisherScoping: true,
}

// ParseCapabilities parses a comma separated capability list. Recognised names
// are "batch", "premium" and "publisher-scoping", plus "all" and "none".
func ParseCapabilities(s string) (Capabilities, error) {
	var c Capabilities
	for _, f := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "":
		case "all":
			c = AllCapabilities
		case "none":
			c = Capabilities{}
		case "batch":
			c.SupportsBatch = true
		case "premium":
			c.SupportsPremiumFiltering = true
		case "publisher-scoping":
			c.SupportsPublisherScoping = true
		default:
			return Capabilities{}, fmt.Errorf("unknown capability %q", f)
		}
	}
	return c, nil
}

func (c Capabilities) String() string {
	var parts []string
	if c.SupportsBatch {
		parts = append(parts, "batch")
	}
	if c.SupportsPremiumFiltering {
		parts = append(parts, "premium")
	}
	if c.SupportsPublisherScoping {
		parts = append(parts, "publisher-scoping")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}
