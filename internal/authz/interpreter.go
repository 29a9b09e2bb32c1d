package authz

import (
	"context"
	"log/slog"

	"bookstore/internal/catalog"
	"bookstore/internal/domain"
)

// Interpreter turns a single decision into the set of visible catalog items.
type Interpreter struct {
	store  *catalog.Store
	rules  *RuleResolver
	caps   Capabilities
	logger *slog.Logger
}

// NewInterpreter creates an interpreter over store.
func NewInterpreter(store *catalog.Store, rules *RuleResolver, caps Capabilities, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{store: store, rules: rules, caps: caps, logger: logger}
}

// Interpret applies res to the catalog for caller id.
//
//	ALLOW, publisher + publishers-view rule  -> the caller's own books
//	ALLOW, anything else                     -> the whole catalog
//	DENY, customer + premium-offers-denied   -> non-premium books
//	DENY, anything else                      -> nothing
//	no decision                              -> nothing
//
// With publisher scoping off, the publishers-view rule falls under "anything
// else". A caller without a known role never sees premium offers, whatever the
// verdict.
func (in *Interpreter) Interpret(ctx context.Context, id domain.Identity, res domain.DecisionResult) ([]domain.Item, error) {
	items, err := in.interpret(ctx, id, res)
	if err != nil {
		return nil, err
	}
	if id.IsUnknown() {
		items = withoutPremium(items)
	}
	return items, nil
}

func (in *Interpreter) interpret(ctx context.Context, id domain.Identity, res domain.DecisionResult) ([]domain.Item, error) {
	switch res.Decision {
	case domain.DecisionAllow:
		rule, err := in.rules.Resolve(ctx, res.PolicyID)
		if err != nil {
			return nil, err
		}
		if id.Role == domain.RolePublisher && rule == domain.RulePublishersView && in.caps.SupportsPublisherScoping {
			return in.store.Filter(catalog.PublishedBy(id.Username)), nil
		}
		return in.store.All(), nil

	case domain.DecisionDeny:
		if id.Role != domain.RoleCustomer || !in.caps.SupportsPremiumFiltering {
			return []domain.Item{}, nil
		}
		rule, err := in.rules.Resolve(ctx, res.PolicyID)
		if err != nil {
			return nil, err
		}
		if rule == domain.RulePremiumOffersDenied {
			return in.store.Filter(catalog.NotPremium), nil
		}
		return []domain.Item{}, nil

	default:
		in.logger.Warn("decision service response carried no decision, returning no items",
			"username", id.Username,
			"role", id.Role.String(),
		)
		return []domain.Item{}, nil
	}
}

func withoutPremium(items []domain.Item) []domain.Item {
	out := items[:0]
	for _, it := range items {
		if !it.PremiumOffer {
			out = append(out, it)
		}
	}
	return out
}
