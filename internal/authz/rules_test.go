package authz_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore/internal/authz"
	"bookstore/internal/domain"
)

func TestRuleFor(t *testing.T) {
	assert.Equal(t, domain.RulePublishersView, authz.RuleFor(authz.DescPublishersView))
	assert.Equal(t, domain.RulePublisherAccessToSpecificBook, authz.RuleFor(authz.DescPublisherAccessToSpecificBook))
	assert.Equal(t, domain.RulePremiumOffersAllowed, authz.RuleFor(authz.DescPremiumOffersAllowed))
	assert.Equal(t, domain.RulePremiumOffersDenied, authz.RuleFor(authz.DescPremiumOffersDenied))
	assert.Equal(t, domain.RuleNone, authz.RuleFor(""))
	assert.Equal(t, domain.RuleNone, authz.RuleFor("allows publishers to list books they have published"))
}

func TestResolveCachesResults(t *testing.T) {
	reg := newFakeRegistry()
	r := authz.NewRuleResolver(reg, nil, nil)
	ctx := context.Background()

	for range 3 {
		kind, err := r.Resolve(ctx, polPublishersView)
		require.NoError(t, err)
		assert.Equal(t, domain.RulePublishersView, kind)
	}

	assert.Equal(t, int64(1), reg.calls.Load())
	assert.Equal(t, 1, r.Cached())
}

func TestResolveCachesMisses(t *testing.T) {
	reg := newFakeRegistry()
	r := authz.NewRuleResolver(reg, nil, nil)
	ctx := context.Background()

	for _, id := range []string{polUndescribed, polUnknownRuleText, polUndescribed, polUnknownRuleText} {
		kind, err := r.Resolve(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.RuleNone, kind)
	}

	assert.Equal(t, int64(2), reg.calls.Load())
	assert.Equal(t, 2, r.Cached())
}

func TestResolveEmptyIDSkipsRegistry(t *testing.T) {
	reg := newFakeRegistry()
	r := authz.NewRuleResolver(reg, nil, nil)

	kind, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, domain.RuleNone, kind)
	assert.Zero(t, reg.calls.Load())
}

func TestResolveErrorIsNotCached(t *testing.T) {
	reg := newFakeRegistry()
	reg.setErr(errors.New("connection reset"))
	r := authz.NewRuleResolver(reg, nil, nil)
	ctx := context.Background()

	_, err := r.Resolve(ctx, polPremiumDenied)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Zero(t, r.Cached())

	reg.setErr(nil)
	kind, err := r.Resolve(ctx, polPremiumDenied)
	require.NoError(t, err)
	assert.Equal(t, domain.RulePremiumOffersDenied, kind)
	assert.Equal(t, int64(2), reg.calls.Load())
}

func TestResolveKeepsUnavailableChain(t *testing.T) {
	reg := newFakeRegistry()
	reg.setErr(domain.ErrServiceUnavailable)
	r := authz.NewRuleResolver(reg, nil, nil)

	_, err := r.Resolve(context.Background(), polPublishersView)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestResolveConcurrent(t *testing.T) {
	reg := newFakeRegistry()
	r := authz.NewRuleResolver(reg, nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kind, err := r.Resolve(ctx, polSpecificBook)
			assert.NoError(t, err)
			assert.Equal(t, domain.RulePublisherAccessToSpecificBook, kind)
		}()
	}
	wg.Wait()

	// Concurrent first lookups may overlap before the cache is filled, but the
	// registry must see far fewer calls than callers.
	assert.LessOrEqual(t, reg.calls.Load(), int64(50))
	assert.Equal(t, 1, r.Cached())
}

// blockingRegistry holds every lookup until released, failing early only if
// the lookup's own context ends.
type blockingRegistry struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int64
}

func (b *blockingRegistry) DescribePolicy(ctx context.Context, _ string) (string, bool, error) {
	b.calls.Add(1)
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
		return authz.DescPublishersView, true, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

func TestResolveSharedLookupSurvivesCanceledCaller(t *testing.T) {
	reg := &blockingRegistry{entered: make(chan struct{}), release: make(chan struct{})}
	r := authz.NewRuleResolver(reg, nil, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctxA, polPublishersView)
		errA <- err
	}()
	<-reg.entered

	type result struct {
		kind domain.RuleKind
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		kind, err := r.Resolve(context.Background(), polPublishersView)
		resB <- result{kind, err}
	}()
	// Let the second caller join the in-flight lookup.
	time.Sleep(20 * time.Millisecond)

	cancelA()
	time.Sleep(20 * time.Millisecond)
	close(reg.release)

	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, domain.RulePublishersView, b.kind)
	assert.NoError(t, <-errA)
	assert.Equal(t, int64(1), reg.calls.Load())
	assert.Equal(t, 1, r.Cached())
}
