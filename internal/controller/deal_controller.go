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
)

// ListDeals returns all deals, or those in ?stage= when given.
func (c *Controller) ListDeals(w http.ResponseWriter, r *http.Request) {
	var query func(ctx context.Context) ([]model.Deal, error)
	if stage := r.URL.Query().Get("stage"); stage != "" {
		query = func(ctx context.Context) ([]model.Deal, error) { return c.Deals.ByStage(ctx, model.DealStage(stage)) }
	}
	listRecords(c, w, r, c.Deals.Collection, query)
}

func (c *Controller) CreateDeal(w http.ResponseWriter, r *http.Request) {
	var in model.DealInput
	if err := handler.Decode(w, r, &in); err != nil {
		c.fail(w, r, err)
		return
	}
	if err := required("title", "Title", in.Title); err != nil {
		c.fail(w, r, err)
		return
	}
	if in.Stage == nil {
		in.Stage = model.Ptr(model.StageApplicationProcessing)
	}
	if err := validateStage(in.Stage); err != nil {
		c.fail(w, r, err)
		return
	}
	deal, err := c.Deals.Create(r.Context(), in)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, deal)
}

func (c *Controller) UpdateDeal(w http.ResponseWriter, r *http.Request) {
	var patch model.DealInput
	if err := handler.Decode(w, r, &patch); err != nil {
		c.fail(w, r, err)
		return
	}
	if err := validateStage(patch.Stage); err != nil {
		c.fail(w, r, err)
		return
	}
	deal, err := c.Deals.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, deal)
}

func (c *Controller) DeleteDeal(w http.ResponseWriter, r *http.Request) {
	deleteRecord(c, w, r, c.Deals.Collection)
}

func (c *Controller) MoveDeal(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Stage model.DealStage `json:"stage"`
	}
	if err := handler.Decode(w, r, &body); err != nil {
		c.fail(w, r, err)
		return
	}
	deal, err := c.Deals.MoveDeal(r.Context(), chi.URLParam(r, "id"), body.Stage)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, deal)
}

// ConvertDeal creates a client from a deal, completes the deal and hands the
// client to the clients collection. A client created for a deal that could
// not be completed is still handed over and returned with the error.
func (c *Controller) ConvertDeal(w http.ResponseWriter, r *http.Request) {
	client, deal, err := c.Deals.ConvertToClient(r.Context(), chi.URLParam(r, "id"))
	var partial *appErrors.PartialConversionError
	if err != nil && !errors.As(err, &partial) {
		c.fail(w, r, err)
		return
	}
	if aerr := c.Clients.Adopt(r.Context(), client); aerr != nil {
		c.log().Warn("could not add converted client", zap.String("client_id", client.ID), zap.Error(aerr))
	}
	if partial != nil {
		c.log().Warn("deal conversion left the deal open",
			zap.String("deal_id", partial.SourceID),
			zap.String("client_id", partial.CreatedID),
			zap.Error(partial.Err))
		handler.WriteJSON(w, http.StatusBadGateway, map[string]any{"error": appErrors.Message(err), "client": client})
		return
	}
	handler.WriteJSON(w, http.StatusCreated, map[string]any{"client": client, "deal": deal})
}

func (c *Controller) Kanban(w http.ResponseWriter, r *http.Request) {
	board, err := c.Deals.Kanban(r.Context())
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, board)
}

func (c *Controller) DealStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.Deals.Stats(r.Context())
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, stats)
}

func validateStage(stage *model.DealStage) error {
	if stage != nil && !stage.Valid() {
		return appErrors.NewValidation("stage", "Invalid deal stage")
	}
	return nil
}
