package handlers

import (
	"net/http"

	"budget-tracker/internal/budget"
)

// Summary reports how much of a budget is spent, per category.
func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.writeError(w, r, budget.ErrNotFound)
		return
	}

	summary, err := h.svc.Summary(r.Context(), GetUserFromContext(r).ID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
