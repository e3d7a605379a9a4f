package metrics_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/aidplug-crm/internal/metrics"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/repository"
	"github.com/unclebandit/aidplug-crm/internal/testutil"
)

func TestCollectionCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	fakes := testutil.NewFakeTables(repository.StaticPrincipal("u1"), nil)
	tables := m.WrapTables(fakes.Tables())
	ctx := context.Background()

	task, err := tables.Tasks.Insert(ctx, model.TaskInput{Title: model.Ptr("Call Omar")})
	require.NoError(t, err)

	_, err = tables.Tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	res, err := tables.Tasks.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, res.Found)

	fakes.Tasks.ListErr = assert.AnError
	_, err = tables.Tasks.List(ctx, repository.ListOptions{})
	assert.Error(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.Requests.WithLabelValues("tasks", "insert", metrics.OutcomeOK)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Requests.WithLabelValues("tasks", "get", metrics.OutcomeOK)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Requests.WithLabelValues("tasks", "get", metrics.OutcomeNotFound)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Requests.WithLabelValues("tasks", "list", metrics.OutcomeError)))
	assert.Equal(t, 3, promtest.CollectAndCount(m.Duration))
}

func TestNewRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)
	_, err = metrics.New(reg)
	assert.Error(t, err)
}
