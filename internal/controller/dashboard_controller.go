package controller

import (
	"net/http"

	"github.com/unclebandit/aidplug-crm/internal/dashboard"
	"github.com/unclebandit/aidplug-crm/internal/handler"
)

// Dashboard returns the KPI counts, pipeline and task figures and the
// client events of the coming week.
func (c *Controller) Dashboard(w http.ResponseWriter, r *http.Request) {
	sum, err := dashboard.Load(r.Context(), dashboard.Sources{
		Leads:   c.Leads,
		Clients: c.Clients.Store(),
		Deals:   c.Deals,
		Tasks:   c.Tasks,
		Now:     c.now,
	})
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, sum)
}
