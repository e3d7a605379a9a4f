package dashboard

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/repository"
)

// KPIs are the headline dashboard counts.
type KPIs struct {
	Leads        int `json:"leads"`
	Clients      int `json:"clients"`
	ActiveDeals  int `json:"active_deals"`
	PendingTasks int `json:"pending_tasks"`
}

type Summary struct {
	KPIs     KPIs            `json:"kpis"`
	Deals    model.DealStats `json:"deals"`
	Tasks    model.TaskStats `json:"tasks"`
	Upcoming []Event         `json:"upcoming_events"`
}

// Sources are the collections a Summary is built from.
type Sources struct {
	Leads interface {
		Count(ctx context.Context) (int, error)
	}
	Clients repository.CollectionRepositoryInterface[model.Client]
	Deals   interface {
		Stats(ctx context.Context) (model.DealStats, error)
	}
	Tasks interface {
		Stats(ctx context.Context) (model.TaskStats, error)
	}
	// Now defaults to time.Now.
	Now func() time.Time
}

// Load fetches every figure concurrently. The first failure cancels the rest.
func Load(ctx context.Context, src Sources) (Summary, error) {
	now := time.Now
	if src.Now != nil {
		now = src.Now
	}

	var (
		sum     Summary
		clients []model.Client
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sum.KPIs.Leads, err = src.Leads.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		clients, err = src.Clients.List(ctx, repository.ListOptions{})
		return err
	})
	g.Go(func() (err error) {
		sum.Deals, err = src.Deals.Stats(ctx)
		return err
	})
	g.Go(func() (err error) {
		sum.Tasks, err = src.Tasks.Stats(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	sum.KPIs.Clients = len(clients)
	sum.KPIs.ActiveDeals = sum.Deals.Active
	sum.KPIs.PendingTasks = sum.Tasks.Pending
	sum.Upcoming = UpcomingEvents(clients, now())
	return sum, nil
}
