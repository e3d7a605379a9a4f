package dashboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/aidplug-crm/internal/dashboard"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/repository"
	"github.com/unclebandit/aidplug-crm/internal/service"
	"github.com/unclebandit/aidplug-crm/internal/testutil"
)

func date(s string) *model.Date {
	d := model.MustDate(s)
	return &d
}

var june8 = time.Date(2024, 6, 8, 15, 30, 0, 0, time.UTC)

func TestUpcomingEvents(t *testing.T) {
	clients := []model.Client{
		{ID: "c1", FullName: "Anniversary", ClientSince: date("2020-06-12")},
		{ID: "c2", FullName: "Birthday", DOB: date("1990-06-10")},
		{ID: "c3", FullName: "New this year", ClientSince: date("2024-06-10")},
		{ID: "c4", FullName: "Too late", DOB: date("1985-06-16")},
		{ID: "c5", FullName: "Already passed", DOB: date("1985-06-07")},
		{ID: "c6", FullName: "No dates"},
	}

	want := []dashboard.Event{
		{Kind: dashboard.Birthday, ClientID: "c2", ClientName: "Birthday", Date: model.MustDate("2024-06-10")},
		{Kind: dashboard.Anniversary, ClientID: "c1", ClientName: "Anniversary", Date: model.MustDate("2024-06-12"), Years: 4},
	}
	if diff := cmp.Diff(want, dashboard.UpcomingEvents(clients, june8)); diff != "" {
		t.Errorf("UpcomingEvents mismatch (-want +got):\n%s", diff)
	}
}

func TestUpcomingEventsWindowIsInclusive(t *testing.T) {
	clients := []model.Client{
		{ID: "end", DOB: date("2000-06-15")},
		{ID: "today", DOB: date("2000-06-08"), ClientSince: date("2023-06-08")},
	}
	got := dashboard.UpcomingEvents(clients, june8)
	require.Len(t, got, 3)
	assert.Equal(t, "today", got[0].ClientID)
	assert.Equal(t, dashboard.Birthday, got[0].Kind)
	assert.Equal(t, "today", got[1].ClientID)
	assert.Equal(t, dashboard.Anniversary, got[1].Kind)
	assert.Equal(t, 1, got[1].Years)
	assert.Equal(t, "end", got[2].ClientID)
}

func TestUpcomingEventsLeapDay(t *testing.T) {
	clients := []model.Client{{ID: "leap", DOB: date("1996-02-29")}}
	got := dashboard.UpcomingEvents(clients, time.Date(2023, 2, 25, 0, 0, 0, 0, time.UTC))
	require.Len(t, got, 1)
	assert.Equal(t, "2023-03-01", got[0].Date.String())
}

func TestUpcomingEventsEmpty(t *testing.T) {
	got := dashboard.UpcomingEvents(nil, june8)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Sara has a birthday on 2024-06-10", dashboard.Describe(dashboard.Event{
		Kind: dashboard.Birthday, ClientName: "Sara", Date: model.MustDate("2024-06-10"),
	}))
	assert.Equal(t, "N/A celebrates 4 years as a client on 2024-06-12", dashboard.Describe(dashboard.Event{
		Kind: dashboard.Anniversary, Date: model.MustDate("2024-06-12"), Years: 4,
	}))
}

func TestLoad(t *testing.T) {
	clock := testutil.NewClock(june8)
	fakes := testutil.NewFakeTables(repository.StaticPrincipal("u1"), clock)
	fakes.Leads.Seed("u1", model.Lead{FullName: "Lead"})
	fakes.Clients.Seed("u1", model.Client{FullName: "Sara", DOB: date("1990-06-10")})
	fakes.Deals.Seed("u1", model.Deal{Title: "Open", Stage: model.StageVerificationNeeded, Amount: model.Ptr(5.0)})
	fakes.Deals.Seed("u1", model.Deal{Title: "Won", Stage: model.StageCompleted, Amount: model.Ptr(7.0)})
	fakes.Tasks.Seed("u1", model.Task{Title: "Call", Status: model.TaskPending, DueDate: model.MustDate("2024-06-08")})

	opts := service.Options{Now: clock.Now}
	deals := service.NewDealService(fakes.Deals, fakes.Clients, opts)
	defer deals.Close()
	tasks := service.NewTaskService(fakes.Tasks, opts)
	defer tasks.Close()
	leads := service.NewLeadService(fakes.Leads, fakes.Deals, opts)
	defer leads.Close()

	sum, err := dashboard.Load(context.Background(), dashboard.Sources{
		Leads:   leads,
		Clients: fakes.Clients,
		Deals:   deals,
		Tasks:   tasks,
		Now:     clock.Now,
	})
	require.NoError(t, err)

	assert.Equal(t, dashboard.KPIs{Leads: 1, Clients: 1, ActiveDeals: 1, PendingTasks: 1}, sum.KPIs)
	assert.Equal(t, 12.0, sum.Deals.TotalValue)
	assert.Equal(t, 1, sum.Tasks.Today)
	require.Len(t, sum.Upcoming, 1)
	assert.Equal(t, dashboard.Birthday, sum.Upcoming[0].Kind)
}

func TestLoadFailure(t *testing.T) {
	fakes := testutil.NewFakeTables(repository.StaticPrincipal("u1"), nil)
	fakes.Clients.ListErr = assert.AnError
	tasks := service.NewTaskService(fakes.Tasks, service.Options{})
	defer tasks.Close()
	deals := service.NewDealService(fakes.Deals, fakes.Clients, service.Options{})
	defer deals.Close()
	leads := service.NewLeadService(fakes.Leads, fakes.Deals, service.Options{})
	defer leads.Close()

	_, err := dashboard.Load(context.Background(), dashboard.Sources{
		Leads:   leads,
		Clients: fakes.Clients,
		Deals:   deals,
		Tasks:   tasks,
	})
	assert.ErrorIs(t, err, assert.AnError)
}
