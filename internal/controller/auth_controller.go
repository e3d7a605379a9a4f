package controller

import (
	"net/http"

	"github.com/unclebandit/aidplug-crm/internal/handler"
	"github.com/unclebandit/aidplug-crm/internal/model"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (c *Controller) GetSession(w http.ResponseWriter, _ *http.Request) {
	handler.WriteJSON(w, http.StatusOK, c.Session.State())
}

func (c *Controller) SignUp(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := handler.Decode(w, r, &body); err != nil {
		c.fail(w, r, err)
		return
	}
	st, err := c.Session.SignUp(r.Context(), body.Email, body.Password, body.FullName)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, st)
}

func (c *Controller) SignIn(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := handler.Decode(w, r, &body); err != nil {
		c.fail(w, r, err)
		return
	}
	st, err := c.Session.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, st)
}

func (c *Controller) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := c.Session.SignOut(r.Context()); err != nil {
		c.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := handler.Decode(w, r, &body); err != nil {
		c.fail(w, r, err)
		return
	}
	if err := c.Session.ResetPassword(r.Context(), body.Email); err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusAccepted, map[string]string{"message": "Password reset email sent"})
}

func (c *Controller) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := handler.Decode(w, r, &body); err != nil {
		c.fail(w, r, err)
		return
	}
	if err := c.Session.UpdatePassword(r.Context(), body.Password, body.ConfirmPassword); err != nil {
		c.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch model.ProfileInput
	if err := handler.Decode(w, r, &patch); err != nil {
		c.fail(w, r, err)
		return
	}
	p, err := c.Session.UpdateProfile(r.Context(), patch)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, p)
}

func (c *Controller) UploadProfilePhoto(w http.ResponseWriter, r *http.Request) {
	f, name, err := photoUpload(w, r)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	defer f.Close()

	url, err := c.Session.UploadProfilePhoto(r.Context(), name, f)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]string{"photo_url": url})
}
