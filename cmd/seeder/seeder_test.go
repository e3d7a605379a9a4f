package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/aidplug-crm/internal/repository"
	"github.com/unclebandit/aidplug-crm/internal/testutil"
)

var june8 = time.Date(2024, 6, 8, 9, 0, 0, 0, time.UTC)

func TestLoadFixturesNormalisesDates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
clients:
  - full_name: Sara
    dob: 1988-06-14
tasks:
  - title: Call
    due_in_days: 2
  - title: Fixed
    due_date: "2024-07-01"
`), 0o600))

	fx, err := loadFixtures(path, june8)
	require.NoError(t, err)
	assert.Equal(t, "1988-06-14", fx.Clients[0]["dob"])
	assert.Equal(t, "2024-06-10", fx.Tasks[0]["due_date"])
	assert.NotContains(t, fx.Tasks[0], "due_in_days")
	assert.Equal(t, "2024-07-01", fx.Tasks[1]["due_date"])
}

func TestLoadFixturesErrors(t *testing.T) {
	_, err := loadFixtures(filepath.Join(t.TempDir(), "missing.yaml"), june8)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("leads: {"), 0o600))
	_, err = loadFixtures(path, june8)
	assert.Error(t, err)
}

func TestSeedBundledFixtures(t *testing.T) {
	fx, err := loadFixtures(filepath.Join("..", "..", "seed", "fixtures.yaml"), june8)
	require.NoError(t, err)

	fakes := testutil.NewFakeTables(repository.StaticPrincipal("u1"), nil)
	n, err := seed(context.Background(), fakes.Tables(), fx)
	require.NoError(t, err)

	assert.Equal(t, len(fx.Leads)+len(fx.Clients)+len(fx.Deals)+len(fx.Tasks), n)
	assert.Equal(t, len(fx.Leads), fakes.Leads.Len())
	assert.Equal(t, len(fx.Tasks), fakes.Tasks.Len())

	tasks, err := fakes.Tasks.List(context.Background(), repository.ListOptions{})
	require.NoError(t, err)
	for _, task := range tasks {
		assert.False(t, task.DueDate.IsZero(), task.Title)
	}
}

func TestSeedStopsOnFailure(t *testing.T) {
	fakes := testutil.NewFakeTables(repository.StaticPrincipal("u1"), nil)
	fakes.Clients.InsertErr = assert.AnError

	n, err := seed(context.Background(), fakes.Tables(), Fixtures{
		Leads:   []map[string]any{{"full_name": "A"}},
		Clients: []map[string]any{{"full_name": "B"}},
		Tasks:   []map[string]any{{"title": "C"}},
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, fakes.Tasks.Len())
}
