// Package metrics instruments the record store with Prometheus counters and
// latency histograms.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/repository"
)

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics holds the store collectors.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aidplug",
			Subsystem: "store",
			Name:      "requests_total",
			Help:      "Record store calls by table, operation and outcome.",
		}, []string{"table", "op", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aidplug",
			Subsystem: "store",
			Name:      "request_duration_seconds",
			Help:      "Record store call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table", "op"}),
	}
	for _, c := range []prometheus.Collector{m.Requests, m.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(table, op string, start time.Time, err error) {
	outcome := OutcomeOK
	switch {
	case appErrors.IsNotFound(err):
		outcome = OutcomeNotFound
	case err != nil:
		outcome = OutcomeError
	}
	m.Requests.WithLabelValues(table, op, outcome).Inc()
	m.Duration.WithLabelValues(table, op).Observe(time.Since(start).Seconds())
}

// Collection records metrics for every call to the wrapped store.
type Collection[T any] struct {
	next repository.CollectionRepositoryInterface[T]
	m    *Metrics
}

var _ repository.CollectionRepositoryInterface[model.Lead] = (*Collection[model.Lead])(nil)

func Wrap[T any](next repository.CollectionRepositoryInterface[T], m *Metrics) *Collection[T] {
	return &Collection[T]{next: next, m: m}
}

// WrapTables instruments every table in t.
func (m *Metrics) WrapTables(t repository.Tables) repository.Tables {
	return repository.Tables{
		Profiles: Wrap(t.Profiles, m),
		Leads:    Wrap(t.Leads, m),
		Clients:  Wrap(t.Clients, m),
		Deals:    Wrap(t.Deals, m),
		Tasks:    Wrap(t.Tasks, m),
	}
}

func (c *Collection[T]) Table() string { return c.next.Table() }

func (c *Collection[T]) List(ctx context.Context, opts repository.ListOptions) ([]T, error) {
	start := time.Now()
	out, err := c.next.List(ctx, opts)
	c.m.observe(c.Table(), "list", start, err)
	return out, err
}

func (c *Collection[T]) Get(ctx context.Context, id string) (repository.Lookup[T], error) {
	start := time.Now()
	res, err := c.next.Get(ctx, id)
	if err == nil && !res.Found {
		c.m.observe(c.Table(), "get", start, appErrors.NewNotFound(c.Table(), id))
		return res, nil
	}
	c.m.observe(c.Table(), "get", start, err)
	return res, err
}

func (c *Collection[T]) Insert(ctx context.Context, values any) (T, error) {
	start := time.Now()
	rec, err := c.next.Insert(ctx, values)
	c.m.observe(c.Table(), "insert", start, err)
	return rec, err
}

func (c *Collection[T]) Update(ctx context.Context, id string, patch any) (T, error) {
	start := time.Now()
	rec, err := c.next.Update(ctx, id, patch)
	c.m.observe(c.Table(), "update", start, err)
	return rec, err
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := c.next.Delete(ctx, id)
	c.m.observe(c.Table(), "delete", start, err)
	return err
}

func (c *Collection[T]) Count(ctx context.Context, opts repository.ListOptions) (int, error) {
	start := time.Now()
	n, err := c.next.Count(ctx, opts)
	c.m.observe(c.Table(), "count", start, err)
	return n, err
}
