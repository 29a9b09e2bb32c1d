package authz_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"bookstore/internal/authz"
	"bookstore/internal/catalog"
	"bookstore/internal/domain"
)

// Policy ids used by the fake registry.
const (
	polPublishersView  = "pol-publishers-view"
	polSpecificBook    = "pol-specific-book"
	polPremiumAllowed  = "pol-premium-allowed"
	polPremiumDenied   = "pol-premium-denied"
	polUndescribed     = "pol-undescribed"
	polUnknownRuleText = "pol-unknown-text"
)

const (
	danteBook1   = "dante-1"
	danteBook2   = "dante-2"
	williamBook  = "R7"
	premiumBook  = "prem-1"
	premiumBook2 = "prem-2"
	plainBook    = "plain-1"
)

type fakeRegistry struct {
	mu    sync.Mutex
	descs map[string]string
	err   error
	calls atomic.Int64
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{descs: map[string]string{
		polPublishersView:  authz.DescPublishersView,
		polSpecificBook:    authz.DescPublisherAccessToSpecificBook,
		polPremiumAllowed:  authz.DescPremiumOffersAllowed,
		polPremiumDenied:   authz.DescPremiumOffersDenied,
		polUnknownRuleText: "Allows nobody in particular to do anything",
	}}
}

func (f *fakeRegistry) DescribePolicy(_ context.Context, id string) (string, bool, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", false, f.err
	}
	d, ok := f.descs[id]
	return d, ok, nil
}

func (f *fakeRegistry) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type fakeDecisions struct {
	single    domain.DecisionResult
	batch     []domain.DecisionResult
	err       error
	lastQuery domain.Query
	lastBatch domain.BatchQuery
	singles   int
	batches   int
}

func (f *fakeDecisions) Evaluate(_ context.Context, q domain.Query) (domain.DecisionResult, error) {
	f.singles++
	f.lastQuery = q
	return f.single, f.err
}

func (f *fakeDecisions) EvaluateBatch(_ context.Context, b domain.BatchQuery) ([]domain.DecisionResult, error) {
	f.batches++
	f.lastBatch = b
	return f.batch, f.err
}

func testStore(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.New([]domain.Item{
		{ID: plainBook, Publisher: "Macmillan"},
		{ID: danteBook1, Publisher: "Dante"},
		{ID: premiumBook, Publisher: "HarperCollins", PremiumOffer: true},
		{ID: williamBook, Publisher: "William"},
		{ID: danteBook2, Publisher: "Dante"},
		{ID: premiumBook2, Publisher: "Dante", PremiumOffer: true},
	})
	require.NoError(t, err)
	return s
}

func intPtr(n int) *int { return &n }

func customer(tenure *int) domain.Identity {
	return domain.NewIdentity("Andrew", domain.RoleCustomer, tenure, "US")
}

func publisher(name string) domain.Identity {
	return domain.NewIdentity(name, domain.RolePublisher, intPtr(5), "US")
}

func itemIDs(items []domain.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
