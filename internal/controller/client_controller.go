package controller

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/aidplug-crm/internal/handler"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/validate"
)

// ListClients returns all clients, or those with ?status= when given.
func (c *Controller) ListClients(w http.ResponseWriter, r *http.Request) {
	var query func(ctx context.Context) ([]model.Client, error)
	if status := r.URL.Query().Get("status"); status != "" {
		query = func(ctx context.Context) ([]model.Client, error) { return c.Clients.ByStatus(ctx, status) }
	}
	listRecords(c, w, r, c.Clients.Collection, query)
}

func (c *Controller) SearchClients(w http.ResponseWriter, r *http.Request) {
	clients, err := c.Clients.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, clients)
}

func (c *Controller) CreateClient(w http.ResponseWriter, r *http.Request) {
	var in model.ClientInput
	if err := handler.Decode(w, r, &in); err != nil {
		c.fail(w, r, err)
		return
	}
	if err := required("full_name", "Full name", in.FullName); err != nil {
		c.fail(w, r, err)
		return
	}
	if err := validateClient(in); err != nil {
		c.fail(w, r, err)
		return
	}
	client, err := c.Clients.Create(r.Context(), in)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, client)
}

func (c *Controller) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var patch model.ClientInput
	if err := handler.Decode(w, r, &patch); err != nil {
		c.fail(w, r, err)
		return
	}
	if err := validateClient(patch); err != nil {
		c.fail(w, r, err)
		return
	}
	client, err := c.Clients.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, client)
}

func (c *Controller) DeleteClient(w http.ResponseWriter, r *http.Request) {
	deleteRecord(c, w, r, c.Clients.Collection)
}

func (c *Controller) UploadClientPhoto(w http.ResponseWriter, r *http.Request) {
	f, name, err := photoUpload(w, r)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	defer f.Close()

	client, err := c.Clients.UploadPhoto(r.Context(), chi.URLParam(r, "id"), name, f)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, client)
}

func validateClient(in model.ClientInput) error {
	if in.FullName != nil {
		if err := validate.FullName(*in.FullName); err != nil {
			return err
		}
	}
	for _, email := range []*string{in.Email, in.OfficialEmail} {
		if email != nil && *email != "" {
			if err := validate.Email(*email); err != nil {
				return err
			}
		}
	}
	if in.Phone != nil {
		return validate.Phone(*in.Phone)
	}
	return nil
}
