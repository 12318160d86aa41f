package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds all domain-specific metrics for the application. It
// implements the fraud service's MetricsRecorder.
type Registry struct {
	meter metric.Meter

	// Fraud Domain Metrics
	AssessmentDuration    metric.Float64Histogram
	AssessmentCounter     metric.Int64Counter
	AssessmentScore       metric.Float64Histogram
	AssessmentsPerSecond  metric.Float64ObservableGauge
	IndicatorCounter      metric.Int64Counter
	ScalpingScanCounter   metric.Int64Counter
	ScalpingNetworks      metric.Int64Histogram
	StoreErrorCounter     metric.Int64Counter
	DashboardCacheCounter metric.Int64Counter

	// API Metrics
	APIRequestDuration  metric.Float64Histogram
	APIRequestCounter   metric.Int64Counter
	LiveFeedConnections metric.Int64ObservableGauge

	// State for observable metrics
	mu                   sync.RWMutex
	assessmentsProcessed int64
	lastAssessmentCount  int64
	lastAssessmentTime   time.Time
	liveFeedConnections  int64
}

// NewRegistry creates a new metrics registry with all domain metrics
func NewRegistry(meterName string) (*Registry, error) {
	r := &Registry{
		meter:              otel.Meter(meterName),
		lastAssessmentTime: time.Now(),
	}

	if err := r.initFraudMetrics(); err != nil {
		return nil, err
	}

	if err := r.initAPIMetrics(); err != nil {
		return nil, err
	}

	return r, nil
}

// initFraudMetrics initializes fraud domain metrics
func (r *Registry) initFraudMetrics() error {
	var err error

	r.AssessmentDuration, err = r.meter.Float64Histogram(
		"tfb.fraud.assessment_duration",
		metric.WithDescription("Duration of session risk assessments in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 5, 10, 50, 100, 500, 1000),
	)
	if err != nil {
		return err
	}

	r.AssessmentCounter, err = r.meter.Int64Counter(
		"tfb.fraud.assessments_total",
		metric.WithDescription("Total number of completed risk assessments"),
	)
	if err != nil {
		return err
	}

	r.AssessmentScore, err = r.meter.Float64Histogram(
		"tfb.fraud.assessment_score",
		metric.WithDescription("Distribution of total risk scores"),
		metric.WithExplicitBucketBoundaries(10, 25, 50, 75, 90, 120, 200),
	)
	if err != nil {
		return err
	}

	r.AssessmentsPerSecond, err = r.meter.Float64ObservableGauge(
		"tfb.fraud.assessment_throughput_per_second",
		metric.WithDescription("Current assessment throughput per second"),
		metric.WithFloat64Callback(func(ctx context.Context, o metric.Float64Observer) error {
			r.mu.Lock()
			defer r.mu.Unlock()

			now := time.Now()
			elapsed := now.Sub(r.lastAssessmentTime).Seconds()
			if elapsed > 0 {
				rate := float64(r.assessmentsProcessed-r.lastAssessmentCount) / elapsed
				o.Observe(rate)
				r.lastAssessmentCount = r.assessmentsProcessed
				r.lastAssessmentTime = now
			}
			return nil
		}),
	)
	if err != nil {
		return err
	}

	r.IndicatorCounter, err = r.meter.Int64Counter(
		"tfb.fraud.indicators_total",
		metric.WithDescription("Total number of triggered risk indicators"),
	)
	if err != nil {
		return err
	}

	r.ScalpingScanCounter, err = r.meter.Int64Counter(
		"tfb.fraud.scalping_scans_total",
		metric.WithDescription("Total number of scalping network scans"),
	)
	if err != nil {
		return err
	}

	r.ScalpingNetworks, err = r.meter.Int64Histogram(
		"tfb.fraud.scalping_networks",
		metric.WithDescription("Networks found per scalping scan"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 5, 10, 25, 50, 100),
	)
	if err != nil {
		return err
	}

	r.StoreErrorCounter, err = r.meter.Int64Counter(
		"tfb.fraud.store_errors_total",
		metric.WithDescription("Total number of backing store failures observed by the engine"),
	)
	if err != nil {
		return err
	}

	r.DashboardCacheCounter, err = r.meter.Int64Counter(
		"tfb.fraud.dashboard_cache_total",
		metric.WithDescription("Dashboard cache outcomes by result"),
	)

	return err
}

// initAPIMetrics initializes API metrics
func (r *Registry) initAPIMetrics() error {
	var err error

	r.APIRequestDuration, err = r.meter.Float64Histogram(
		"tfb.api.request_duration",
		metric.WithDescription("Duration of API requests in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 500, 1000, 5000),
	)
	if err != nil {
		return err
	}

	r.APIRequestCounter, err = r.meter.Int64Counter(
		"tfb.api.request_total",
		metric.WithDescription("Total number of API requests"),
	)
	if err != nil {
		return err
	}

	r.LiveFeedConnections, err = r.meter.Int64ObservableGauge(
		"tfb.api.live_feed_connections",
		metric.WithDescription("Currently connected live threat feed clients"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.liveFeedConnections)
			return nil
		}),
	)

	return err
}

// RecordAssessment records one completed assessment
func (r *Registry) RecordAssessment(ctx context.Context, level string, score float64, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("risk_level", level),
	}

	r.AssessmentDuration.Record(ctx, float64(duration.Microseconds())/1000.0, metric.WithAttributes(attrs...))
	r.AssessmentScore.Record(ctx, score, metric.WithAttributes(attrs...))
	r.AssessmentCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	r.mu.Lock()
	r.assessmentsProcessed++
	r.mu.Unlock()
}

// RecordIndicator records one triggered indicator
func (r *Registry) RecordIndicator(ctx context.Context, name string) {
	r.IndicatorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("indicator", name),
	))
}

// RecordScalpingScan records one scalping network scan
func (r *Registry) RecordScalpingScan(ctx context.Context, level string, networks int) {
	attrs := []attribute.KeyValue{
		attribute.String("threat_level", level),
	}

	r.ScalpingScanCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	r.ScalpingNetworks.Record(ctx, int64(networks), metric.WithAttributes(attrs...))
}

// RecordStoreError records a backing store failure
func (r *Registry) RecordStoreError(ctx context.Context, store string) {
	r.StoreErrorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", store),
	))
}

// RecordDashboardCache records a dashboard cache outcome (hit, miss, stale)
func (r *Registry) RecordDashboardCache(ctx context.Context, result string) {
	r.DashboardCacheCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}

// RecordAPIRequest records API request metrics
func (r *Registry) RecordAPIRequest(ctx context.Context, duration float64, method, path string, statusCode int) {
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	}

	r.APIRequestDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
	r.APIRequestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// UpdateLiveFeedConnections adjusts the live feed connection count
func (r *Registry) UpdateLiveFeedConnections(delta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.liveFeedConnections += delta
}
