package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/realmbind/internal/wire"
)

func TestMetrics_Observe(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)

	m.Observe("get", nil, time.Millisecond)
	m.Observe("get", Errorf(ErrCodeIndexOutOfRange, "x"), time.Millisecond)
	m.Observe("get", errors.New("plain"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("get", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("get", "INDEX_OUT_OF_RANGE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("get", "UNKNOWN")))
}

func TestMetrics_RegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestInstrument_RecordsCalls(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)
	p := Instrument(newTestMemory(t), metrics)

	id := openRealm(t, p, "a")
	people := seedPeople(t, p, id)
	_, err = p.Get(id, people, 99)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.calls.WithLabelValues("create_realm", "OK")))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.calls.WithLabelValues(string(MethodCreate), "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.calls.WithLabelValues("begin_transaction", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.calls.WithLabelValues("commit_transaction", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.calls.WithLabelValues("get", "INDEX_OUT_OF_RANGE")))

	count, err := testutil.GatherAndCount(reg, "realmbind_engine_call_duration_seconds")
	require.NoError(t, err)
	assert.Positive(t, count)

	inWrite(t, p, id, func() {
		_, err := p.CallMethod(id, MethodCreate, wire.String("Ghost"))
		assert.True(t, IsCode(err, ErrCodeUnknownType))
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.calls.WithLabelValues(string(MethodCreate), "UNKNOWN_TYPE")))
}

func TestDefault_IsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
