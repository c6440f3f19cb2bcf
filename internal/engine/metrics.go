package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/realmbind/internal/wire"
)

// Metrics records engine call outcomes.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realmbind",
			Subsystem: "engine",
			Name:      "calls_total",
			Help:      "Engine calls by operation and result code.",
		}, []string{"operation", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "realmbind",
			Subsystem: "engine",
			Name:      "call_duration_seconds",
			Help:      "Engine call latency by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"operation"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.calls, m.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Observe records one call. code is "OK" for success, the engine error
// code for engine errors, "UNKNOWN" for anything else.
func (m *Metrics) Observe(operation string, err error, duration time.Duration) {
	code := "OK"
	if err != nil {
		code = string(CodeOf(err))
		if code == "" {
			code = "UNKNOWN"
		}
	}
	m.calls.WithLabelValues(operation, code).Inc()
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Instrument wraps p so that every call is recorded in m.
func Instrument(p Proxy, m *Metrics) Proxy {
	return &instrumented{target: p, m: m}
}

type instrumented struct {
	target Proxy
	m      *Metrics
}

func observe[T any](i *instrumented, operation string, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := fn()
	i.m.Observe(operation, err, time.Since(start))
	return out, err
}

func observeErr(i *instrumented, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	i.m.Observe(operation, err, time.Since(start))
	return err
}

func (i *instrumented) CreateRealm(cfg RealmConfig) (RealmID, error) {
	return observe(i, "create_realm", func() (RealmID, error) { return i.target.CreateRealm(cfg) })
}

func (i *instrumented) CloseRealm(id RealmID) error {
	return observeErr(i, "close_realm", func() error { return i.target.CloseRealm(id) })
}

func (i *instrumented) BeginTransaction(id RealmID) error {
	return observeErr(i, "begin_transaction", func() error { return i.target.BeginTransaction(id) })
}

func (i *instrumented) CommitTransaction(id RealmID) error {
	return observeErr(i, "commit_transaction", func() error { return i.target.CommitTransaction(id) })
}

func (i *instrumented) CancelTransaction(id RealmID) error {
	return observeErr(i, "cancel_transaction", func() error { return i.target.CancelTransaction(id) })
}

func (i *instrumented) CallMethod(id RealmID, method Method, args ...wire.Value) (wire.Value, error) {
	return observe(i, string(method), func() (wire.Value, error) { return i.target.CallMethod(id, method, args...) })
}

func (i *instrumented) GetProperty(id RealmID, obj wire.Object, name string) (wire.Value, error) {
	return observe(i, "get_property", func() (wire.Value, error) { return i.target.GetProperty(id, obj, name) })
}

func (i *instrumented) SetProperty(id RealmID, obj wire.Object, name string, value wire.Value) error {
	return observeErr(i, "set_property", func() error { return i.target.SetProperty(id, obj, name, value) })
}

func (i *instrumented) Length(id RealmID, c wire.Collection) (int, error) {
	return observe(i, "length", func() (int, error) { return i.target.Length(id, c) })
}

func (i *instrumented) Get(id RealmID, c wire.Collection, index int) (wire.Object, error) {
	return observe(i, "get", func() (wire.Object, error) { return i.target.Get(id, c, index) })
}

func (i *instrumented) Query(id RealmID, c wire.Collection, q Query) (wire.Results, error) {
	return observe(i, "query", func() (wire.Results, error) { return i.target.Query(id, c, q) })
}

func (i *instrumented) ListSet(id RealmID, l wire.List, index int, value wire.Value) error {
	return observeErr(i, "list_set", func() error { return i.target.ListSet(id, l, index, value) })
}

func (i *instrumented) ListSplice(id RealmID, l wire.List, start, deleteCount int, values []wire.Value) ([]wire.Object, error) {
	return observe(i, "list_splice", func() ([]wire.Object, error) {
		return i.target.ListSplice(id, l, start, deleteCount, values)
	})
}

func (i *instrumented) ReleaseResults(id RealmID, r wire.Results) error {
	return observeErr(i, "release_results", func() error { return i.target.ReleaseResults(id, r) })
}

func (i *instrumented) ClearTestState() error {
	return observeErr(i, "clear_test_state", i.target.ClearTestState)
}
