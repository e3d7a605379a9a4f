package service

import (
	"context"
	"strings"

	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/queue"
	"github.com/unclebandit/aidplug-crm/internal/repository"
)

var leadSearchColumns = []string{"full_name", "company_name", "email", "phone"}

// LeadService is the leads collection.
type LeadService struct {
	*Collection[model.Lead]
	deals repository.CollectionRepositoryInterface[model.Deal]
}

// NewLeadService creates the leads collection. deals is where converted
// leads are inserted.
func NewLeadService(leads repository.CollectionRepositoryInterface[model.Lead], deals repository.CollectionRepositoryInterface[model.Deal], opts Options) *LeadService {
	return &LeadService{Collection: NewCollection(leads, opts), deals: deals}
}

// ConvertToDeal inserts a deal in the first pipeline stage and then deletes
// the lead. The two calls are not atomic: if the delete fails the created
// deal is returned together with a *appErrors.PartialConversionError.
func (s *LeadService) ConvertToDeal(ctx context.Context, leadID string, in model.DealInput) (model.Deal, error) {
	var deal model.Deal
	err := s.do(ctx, "convert", func(ctx context.Context) error {
		in.Stage = model.Ptr(model.StageApplicationProcessing)
		in.Probability = model.Ptr(float64(model.ConvertedDealProbability))

		var err error
		deal, err = s.deals.Insert(ctx, in)
		if err != nil {
			return s.fail(err)
		}
		s.publishFor(repository.TableDeals, queue.OpInsert, deal.ID, deal.UserID)

		if err := s.delete(ctx, leadID); err != nil {
			return s.fail(&appErrors.PartialConversionError{
				SourceTable: repository.TableLeads,
				SourceID:    leadID,
				CreatedID:   deal.ID,
				Err:         err,
			})
		}
		return nil
	})
	return deal, err
}

// ByStatus lists leads with the given qualification status.
func (s *LeadService) ByStatus(ctx context.Context, status string) ([]model.Lead, error) {
	return s.store.List(ctx, repository.Where(repository.Eq("qualification_status", status)))
}

// Search matches term against name, company, email and phone.
func (s *LeadService) Search(ctx context.Context, term string) ([]model.Lead, error) {
	return search(ctx, s.store, term, leadSearchColumns)
}

func (s *LeadService) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx, repository.ListOptions{})
}

// search lists records containing term in any of columns. A blank term
// lists everything.
func search[T any](ctx context.Context, store repository.CollectionRepositoryInterface[T], term string, columns []string) ([]T, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return store.List(ctx, repository.ListOptions{})
	}
	return store.List(ctx, repository.Matching(term, columns...))
}
