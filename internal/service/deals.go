package service

import (
	"context"

	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/queue"
	"github.com/unclebandit/aidplug-crm/internal/repository"
)

var dealSearchColumns = []string{"title", "client_name", "application_number", "bdi_number"}

// DealService is the deals collection.
type DealService struct {
	*Collection[model.Deal]
	clients repository.CollectionRepositoryInterface[model.Client]
}

// NewDealService creates the deals collection. clients is where
// ConvertToClient inserts.
func NewDealService(deals repository.CollectionRepositoryInterface[model.Deal], clients repository.CollectionRepositoryInterface[model.Client], opts Options) *DealService {
	return &DealService{Collection: NewCollection(deals, opts), clients: clients}
}

// MoveDeal sets the stage of a deal. Completing a deal stamps today's date
// as completed_date; any other stage clears it.
func (s *DealService) MoveDeal(ctx context.Context, id string, stage model.DealStage) (model.Deal, error) {
	var deal model.Deal
	err := s.do(ctx, "move", func(ctx context.Context) error {
		var err error
		deal, err = s.move(ctx, id, stage)
		return err
	})
	return deal, err
}

func (s *DealService) move(ctx context.Context, id string, stage model.DealStage) (model.Deal, error) {
	if !stage.Valid() {
		return model.Deal{}, s.fail(appErrors.NewValidation("stage", "Invalid deal stage"))
	}
	patch := model.DealInput{Stage: &stage, CompletedDate: model.ClearDate()}
	if stage == model.StageCompleted {
		patch.CompletedDate = model.SetDate(s.today())
	}
	return s.update(ctx, id, patch)
}

// ConvertToClient creates an active client from a deal and completes the
// deal. The deal must exist. If completing the deal fails the created client
// is returned together with a *appErrors.PartialConversionError.
func (s *DealService) ConvertToClient(ctx context.Context, dealID string) (model.Client, model.Deal, error) {
	var (
		client model.Client
		deal   model.Deal
	)
	err := s.do(ctx, "convert", func(ctx context.Context) error {
		src, err := mustGet(ctx, s.store, dealID)
		if err != nil {
			return s.fail(err)
		}

		in := model.ClientInput{
			FullName:           model.Ptr(src.ClientName),
			RelationshipStatus: model.Ptr(model.RelationshipActive),
			TotalLoanAmount:    src.Amount,
			Products:           model.Ptr([]string{}),
			ClientSince:        model.Ptr(s.today()),
		}
		if src.ProductType != nil {
			in.Products = model.Ptr([]string{*src.ProductType})
		}
		client, err = s.clients.Insert(ctx, in)
		if err != nil {
			return s.fail(err)
		}
		s.publishFor(repository.TableClients, queue.OpInsert, client.ID, client.UserID)

		deal, err = s.move(ctx, dealID, model.StageCompleted)
		if err != nil {
			return s.fail(&appErrors.PartialConversionError{
				SourceTable: repository.TableDeals,
				SourceID:    dealID,
				CreatedID:   client.ID,
				Step:        "complete",
				Err:         err,
			})
		}
		return nil
	})
	return client, deal, err
}

// ByStage lists deals in stage.
func (s *DealService) ByStage(ctx context.Context, stage model.DealStage) ([]model.Deal, error) {
	return s.store.List(ctx, repository.Where(repository.Eq("stage", stage)))
}

// Search matches term against title, client name, application and BDI numbers.
func (s *DealService) Search(ctx context.Context, term string) ([]model.Deal, error) {
	return search(ctx, s.store, term, dealSearchColumns)
}

func (s *DealService) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx, repository.ListOptions{})
}

// Kanban fetches all deals and groups them by stage.
func (s *DealService) Kanban(ctx context.Context) (map[model.DealStage][]model.Deal, error) {
	deals, err := s.store.List(ctx, repository.ListOptions{})
	if err != nil {
		return nil, err
	}
	return GroupByStage(deals), nil
}

// Stats fetches all deals and summarises them.
func (s *DealService) Stats(ctx context.Context) (model.DealStats, error) {
	deals, err := s.store.List(ctx, repository.ListOptions{})
	if err != nil {
		return model.DealStats{}, err
	}
	return ComputeDealStats(deals), nil
}

// GroupByStage buckets deals by pipeline stage, keeping their order. Every
// stage has an entry; deals with an unknown stage are dropped.
func GroupByStage(deals []model.Deal) map[model.DealStage][]model.Deal {
	out := make(map[model.DealStage][]model.Deal, len(model.DealStages))
	for _, st := range model.DealStages {
		out[st] = []model.Deal{}
	}
	for _, d := range deals {
		if _, ok := out[d.Stage]; ok {
			out[d.Stage] = append(out[d.Stage], d)
		}
	}
	return out
}

func ComputeDealStats(deals []model.Deal) model.DealStats {
	var st model.DealStats
	st.Total = len(deals)
	for _, d := range deals {
		var amount float64
		if d.Amount != nil {
			amount = *d.Amount
		}
		st.TotalValue += amount
		switch d.Stage {
		case model.StageCompleted:
			st.Completed++
			st.CompletedValue += amount
		case model.StageUnsuccessful:
			st.Unsuccessful++
		default:
			st.Active++
		}
	}
	return st
}
