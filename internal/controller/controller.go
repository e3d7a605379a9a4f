// Package controller exposes the CRM over HTTP.
package controller

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/handler"
	"github.com/unclebandit/aidplug-crm/internal/repository"
	"github.com/unclebandit/aidplug-crm/internal/service"
	"github.com/unclebandit/aidplug-crm/internal/session"
)

// MaxPhotoBytes caps photo uploads.
const MaxPhotoBytes = 10 << 20

// Controller serves the auth, record and dashboard endpoints.
type Controller struct {
	Session *session.Manager
	Leads   *service.LeadService
	Clients *service.ClientService
	Deals   *service.DealService
	Tasks   *service.TaskService
	Logger  *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Routes registers every endpoint on r. Everything outside /auth requires a
// signed-in user.
func (c *Controller) Routes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Get("/session", c.GetSession)
		r.Post("/signup", c.SignUp)
		r.Post("/signin", c.SignIn)
		r.Post("/signout", c.SignOut)
		r.Post("/reset", c.ResetPassword)
		r.Post("/password", c.UpdatePassword)
	})

	r.Group(func(r chi.Router) {
		r.Use(handler.RequireSession(c.Session))

		r.Patch("/profile", c.UpdateProfile)
		r.Post("/profile/photo", c.UploadProfilePhoto)

		r.Route("/leads", func(r chi.Router) {
			r.Get("/", c.ListLeads)
			r.Post("/", c.CreateLead)
			r.Get("/search", c.SearchLeads)
			r.Patch("/{id}", c.UpdateLead)
			r.Delete("/{id}", c.DeleteLead)
			r.Post("/{id}/convert", c.ConvertLead)
		})

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", c.ListClients)
			r.Post("/", c.CreateClient)
			r.Get("/search", c.SearchClients)
			r.Patch("/{id}", c.UpdateClient)
			r.Delete("/{id}", c.DeleteClient)
			r.Post("/{id}/photo", c.UploadClientPhoto)
		})

		r.Route("/deals", func(r chi.Router) {
			r.Get("/", c.ListDeals)
			r.Post("/", c.CreateDeal)
			r.Get("/kanban", c.Kanban)
			r.Get("/stats", c.DealStats)
			r.Patch("/{id}", c.UpdateDeal)
			r.Delete("/{id}", c.DeleteDeal)
			r.Post("/{id}/move", c.MoveDeal)
			r.Post("/{id}/convert", c.ConvertDeal)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", c.ListTasks)
			r.Post("/", c.CreateTask)
			r.Get("/stats", c.TaskStats)
			r.Patch("/{id}", c.UpdateTask)
			r.Delete("/{id}", c.DeleteTask)
			r.Post("/{id}/toggle", c.ToggleTask)
		})

		r.Get("/dashboard", c.Dashboard)
	})
}

func (c *Controller) log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *Controller) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// fail writes err and logs backend failures.
func (c *Controller) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := handler.StatusOf(err)
	if status >= http.StatusInternalServerError {
		c.log().Error("request failed",
			zap.String("request_id", handler.RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	handler.WriteError(w, status, appErrors.Message(err))
}

// listRecords refreshes col and writes its records. When a filter query is
// given the collection is bypassed and the query result written instead.
func listRecords[T repository.Record](c *Controller, w http.ResponseWriter, r *http.Request, col *service.Collection[T], query func(ctx context.Context) ([]T, error)) {
	if query != nil {
		recs, err := query(r.Context())
		if err != nil {
			c.fail(w, r, err)
			return
		}
		handler.WriteJSON(w, http.StatusOK, recs)
		return
	}
	if err := col.Refresh(r.Context()); err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, col.Records())
}

func deleteRecord[T repository.Record](c *Controller, w http.ResponseWriter, r *http.Request, col *service.Collection[T]) {
	if err := col.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		c.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// photoUpload returns the "photo" part of a multipart form.
func photoUpload(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxPhotoBytes)
	if err := r.ParseMultipartForm(MaxPhotoBytes); err != nil {
		return nil, "", appErrors.NewValidation("photo", "invalid photo upload")
	}
	f, hdr, err := r.FormFile("photo")
	if err != nil {
		return nil, "", appErrors.NewValidation("photo", "photo is required")
	}
	return f, hdr.Filename, nil
}

func required(field, label string, v *string) error {
	if v == nil || *v == "" {
		return appErrors.NewValidation(field, label+" is required")
	}
	return nil
}
