package authz

import (
	"bookstore/internal/domain"
)

// Resources is the static resource configuration the query builder works from.
// It is deployment data, not derived from the catalog.
type Resources struct {
	// PublisherBooks maps a publisher's username to the item their single
	// decision is scoped to.
	PublisherBooks map[string]string
	// Batch lists the resources checked individually in batch mode, with the
	// username that owns each.
	Batch []domain.ResourceOwner
}

// QueryBuilder maps identities to authorization queries.
type QueryBuilder struct {
	caps Capabilities
	res  Resources
}

// NewQueryBuilder creates a query builder.
func NewQueryBuilder(caps Capabilities, res Resources) *QueryBuilder {
	return &QueryBuilder{caps: caps, res: res}
}

// Single builds the query for single-decision mode.
func (b *QueryBuilder) Single(id domain.Identity) domain.Query {
	q := domain.Query{
		Principal: id,
		Action:    domain.ActionView,
		Resource:  domain.AllResources,
		Context:   contextFor(id),
	}

	if id.Role == domain.RolePublisher && b.caps.SupportsPublisherScoping {
		if book, ok := b.res.PublisherBooks[id.Username]; ok && book != "" {
			q.Resource = domain.Resource{ID: book, Owner: id.Username}
		}
	}

	if id.Role == domain.RoleCustomer && b.caps.SupportsPremiumFiltering {
		if years, ok := id.MembershipTenure(); ok {
			q.Action = domain.ActionViewWithPremiumOffers
			q.PrincipalAttrs = map[string]int{domain.AttrYearsAsMember: years}
		}
	}

	return q
}

// Batch builds the per-resource queries for batch mode. Every query uses the
// View action and the same context.
func (b *QueryBuilder) Batch(id domain.Identity) domain.BatchQuery {
	owners := make([]domain.ResourceOwner, len(b.res.Batch))
	copy(owners, b.res.Batch)

	queries := make([]domain.Query, 0, len(owners))
	for _, o := range owners {
		queries = append(queries, domain.Query{
			Principal: id,
			Action:    domain.ActionView,
			Resource:  domain.Resource{ID: o.ResourceID, Owner: o.Owner},
			Context:   contextFor(id),
		})
	}

	return domain.BatchQuery{
		Principal: id,
		Owners:    owners,
		Queries:   queries,
	}
}

func contextFor(id domain.Identity) map[string]string {
	region := id.Region
	if region == "" {
		region = domain.Unknown
	}
	return map[string]string{domain.ContextRegion: region}
}
