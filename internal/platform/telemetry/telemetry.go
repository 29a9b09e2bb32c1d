package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// ShutdownFunc releases telemetry resources.
type ShutdownFunc func(ctx context.Context) error

// Setup initializes OpenTelemetry with a Prometheus exporter.
// Returns a shutdown function that must be called on exit.
func Setup(ctx context.Context, serviceName string) (ShutdownFunc, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}

// MetricsHandler returns an http.Handler that serves Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// CatalogMetrics holds all OTel instruments for the catalog service.
type CatalogMetrics struct {
	httpRequestsTotal       otelmetric.Int64Counter
	httpRequestDuration     otelmetric.Float64Histogram
	authValidationsTotal    otelmetric.Int64Counter
	jwksRefreshesTotal      otelmetric.Int64Counter
	rateLimitDecisionsTotal otelmetric.Int64Counter
	decisionsTotal          otelmetric.Int64Counter
	decisionDuration        otelmetric.Float64Histogram
	policyLookupsTotal      otelmetric.Int64Counter
	itemsReturned           otelmetric.Int64Histogram
}

// NewCatalogMetrics creates and registers all catalog metrics.
func NewCatalogMetrics() (*CatalogMetrics, error) {
	meter := otel.Meter("catalog")
	m := &CatalogMetrics{}
	var err error

	latencyBuckets := otelmetric.WithExplicitBucketBoundaries(
		0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
	)

	if m.httpRequestsTotal, err = meter.Int64Counter("catalog_http_requests_total",
		otelmetric.WithDescription("Total HTTP requests")); err != nil {
		return nil, fmt.Errorf("creating http_requests_total: %w", err)
	}
	if m.httpRequestDuration, err = meter.Float64Histogram("catalog_http_request_duration_seconds",
		otelmetric.WithDescription("HTTP request duration"), latencyBuckets); err != nil {
		return nil, fmt.Errorf("creating http_request_duration: %w", err)
	}
	if m.authValidationsTotal, err = meter.Int64Counter("catalog_auth_validations_total",
		otelmetric.WithDescription("Total bearer token validations")); err != nil {
		return nil, fmt.Errorf("creating auth_validations_total: %w", err)
	}
	if m.jwksRefreshesTotal, err = meter.Int64Counter("catalog_jwks_refreshes_total",
		otelmetric.WithDescription("Total JWKS refreshes")); err != nil {
		return nil, fmt.Errorf("creating jwks_refreshes_total: %w", err)
	}
	if m.rateLimitDecisionsTotal, err = meter.Int64Counter("catalog_ratelimit_decisions_total",
		otelmetric.WithDescription("Total rate limit decisions")); err != nil {
		return nil, fmt.Errorf("creating ratelimit_decisions_total: %w", err)
	}
	if m.decisionsTotal, err = meter.Int64Counter("catalog_decisions_total",
		otelmetric.WithDescription("Authorization decisions received, by mode and verdict")); err != nil {
		return nil, fmt.Errorf("creating decisions_total: %w", err)
	}
	if m.decisionDuration, err = meter.Float64Histogram("catalog_decision_duration_seconds",
		otelmetric.WithDescription("Decision service call duration"), latencyBuckets); err != nil {
		return nil, fmt.Errorf("creating decision_duration: %w", err)
	}
	if m.policyLookupsTotal, err = meter.Int64Counter("catalog_policy_lookups_total",
		otelmetric.WithDescription("Determining policy lookups, by result")); err != nil {
		return nil, fmt.Errorf("creating policy_lookups_total: %w", err)
	}
	if m.itemsReturned, err = meter.Int64Histogram("catalog_items_returned",
		otelmetric.WithDescription("Catalog items returned per request"),
		otelmetric.WithExplicitBucketBoundaries(0, 1, 2, 5, 10, 25, 50, 100)); err != nil {
		return nil, fmt.Errorf("creating items_returned: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request metric.
func (m *CatalogMetrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, durationSec float64) {
	attrs := otelmetric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(status),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, durationSec, attrs)
}

// RecordAuthValidation records a token validation result: "success", "failure" or "anonymous".
func (m *CatalogMetrics) RecordAuthValidation(ctx context.Context, result string) {
	m.authValidationsTotal.Add(ctx, 1, otelmetric.WithAttributes(resultAttr(result)))
}

// RecordJWKSRefresh records a JWKS refresh attempt.
func (m *CatalogMetrics) RecordJWKSRefresh(ctx context.Context, result string) {
	m.jwksRefreshesTotal.Add(ctx, 1, otelmetric.WithAttributes(resultAttr(result)))
}

// RecordRateLimitDecision records a rate limit decision.
func (m *CatalogMetrics) RecordRateLimitDecision(ctx context.Context, layer, result string) {
	m.rateLimitDecisionsTotal.Add(ctx, 1, otelmetric.WithAttributes(
		layerAttr(layer),
		resultAttr(result),
	))
}

// RecordDecision records one verdict from the decision service.
func (m *CatalogMetrics) RecordDecision(ctx context.Context, mode, decision string) {
	m.decisionsTotal.Add(ctx, 1, otelmetric.WithAttributes(
		modeAttr(mode),
		decisionAttr(decision),
	))
}

// RecordDecisionCall records the duration of a decision service call.
func (m *CatalogMetrics) RecordDecisionCall(ctx context.Context, mode, result string, durationSec float64) {
	m.decisionDuration.Record(ctx, durationSec, otelmetric.WithAttributes(
		modeAttr(mode),
		resultAttr(result),
	))
}

// RecordPolicyLookup records a policy lookup: "hit", "miss", "fetched" or "error".
func (m *CatalogMetrics) RecordPolicyLookup(ctx context.Context, result string) {
	m.policyLookupsTotal.Add(ctx, 1, otelmetric.WithAttributes(resultAttr(result)))
}

// RecordItemsReturned records how many catalog items a request was allowed to see.
func (m *CatalogMetrics) RecordItemsReturned(ctx context.Context, mode string, n int) {
	m.itemsReturned.Record(ctx, int64(n), otelmetric.WithAttributes(modeAttr(mode)))
}
