package authz

import (
	"context"
	"slices"
	"strings"

	"bookstore/internal/catalog"
	"bookstore/internal/domain"
)

// Reconciler merges per-resource batch verdicts into one item list.
type Reconciler struct {
	store *catalog.Store
	rules *RuleResolver
}

// NewReconciler creates a reconciler over store.
func NewReconciler(store *catalog.Store, rules *RuleResolver) *Reconciler {
	return &Reconciler{store: store, rules: rules}
}

// Reconcile unions the items granted by every ALLOW result:
//
//	publishers-view                    -> every book the caller published
//	publisher-access-to-specific-book  -> the book the result was issued for
//
// DENY results and ALLOW results whose rule is not one of the above add
// nothing. The output holds each item once and is ordered by item id.
func (r *Reconciler) Reconcile(ctx context.Context, id domain.Identity, results []domain.DecisionResult) ([]domain.Item, error) {
	seen := make(map[string]struct{})
	out := []domain.Item{}
	add := func(items ...domain.Item) {
		for _, it := range items {
			if _, dup := seen[it.ID]; dup {
				continue
			}
			seen[it.ID] = struct{}{}
			out = append(out, it)
		}
	}

	for _, res := range results {
		if res.Decision != domain.DecisionAllow {
			continue
		}
		rule, err := r.rules.Resolve(ctx, res.PolicyID)
		if err != nil {
			return nil, err
		}

		switch rule {
		case domain.RulePublishersView:
			add(r.store.Filter(catalog.PublishedBy(id.Username))...)
		case domain.RulePublisherAccessToSpecificBook:
			if it, ok := r.store.ByID(res.Resource); ok {
				add(it)
			}
		}
	}

	slices.SortFunc(out, func(a, b domain.Item) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}
