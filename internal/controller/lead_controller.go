package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/handler"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/validate"
)

// ListLeads returns all leads, or those with ?status= when given.
func (c *Controller) ListLeads(w http.ResponseWriter, r *http.Request) {
	var query func(ctx context.Context) ([]model.Lead, error)
	if status := r.URL.Query().Get("status"); status != "" {
		query = func(ctx context.Context) ([]model.Lead, error) { return c.Leads.ByStatus(ctx, status) }
	}
	listRecords(c, w, r, c.Leads.Collection, query)
}

func (c *Controller) SearchLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := c.Leads.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, leads)
}

func (c *Controller) CreateLead(w http.ResponseWriter, r *http.Request) {
	var in model.LeadInput
	if err := handler.Decode(w, r, &in); err != nil {
		c.fail(w, r, err)
		return
	}
	if err := required("full_name", "Full name", in.FullName); err != nil {
		c.fail(w, r, err)
		return
	}
	if err := validateLead(in); err != nil {
		c.fail(w, r, err)
		return
	}
	lead, err := c.Leads.Create(r.Context(), in)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, lead)
}

func (c *Controller) UpdateLead(w http.ResponseWriter, r *http.Request) {
	var patch model.LeadInput
	if err := handler.Decode(w, r, &patch); err != nil {
		c.fail(w, r, err)
		return
	}
	if err := validateLead(patch); err != nil {
		c.fail(w, r, err)
		return
	}
	lead, err := c.Leads.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, lead)
}

func (c *Controller) DeleteLead(w http.ResponseWriter, r *http.Request) {
	deleteRecord(c, w, r, c.Leads.Collection)
}

// ConvertLead turns a lead into a deal and hands the deal to the deals
// collection. When the lead could not be removed afterwards the created deal
// is still returned alongside the error.
func (c *Controller) ConvertLead(w http.ResponseWriter, r *http.Request) {
	var in model.DealInput
	if err := handler.Decode(w, r, &in); err != nil {
		c.fail(w, r, err)
		return
	}
	if err := required("title", "Title", in.Title); err != nil {
		c.fail(w, r, err)
		return
	}
	if err := required("client_name", "Client name", in.ClientName); err != nil {
		c.fail(w, r, err)
		return
	}
	deal, err := c.Leads.ConvertToDeal(r.Context(), chi.URLParam(r, "id"), in)
	var partial *appErrors.PartialConversionError
	if err != nil && !errors.As(err, &partial) {
		c.fail(w, r, err)
		return
	}
	if aerr := c.Deals.Adopt(r.Context(), deal); aerr != nil {
		c.log().Warn("could not add converted deal", zap.String("deal_id", deal.ID), zap.Error(aerr))
	}
	if partial != nil {
		c.log().Warn("lead conversion left the lead behind",
			zap.String("lead_id", partial.SourceID),
			zap.String("deal_id", partial.CreatedID),
			zap.Error(partial.Err))
		handler.WriteJSON(w, http.StatusBadGateway, map[string]any{"error": appErrors.Message(err), "deal": deal})
		return
	}
	handler.WriteJSON(w, http.StatusCreated, deal)
}

func validateLead(in model.LeadInput) error {
	if in.FullName != nil {
		if err := validate.FullName(*in.FullName); err != nil {
			return err
		}
	}
	if in.Email != nil && *in.Email != "" {
		if err := validate.Email(*in.Email); err != nil {
			return err
		}
	}
	if in.Phone != nil {
		return validate.Phone(*in.Phone)
	}
	return nil
}
