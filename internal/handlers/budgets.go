package handlers

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"budget-tracker/internal/budget"

	"github.com/shopspring/decimal"
)

// maxUploadSize bounds the multipart body of an import.
const maxUploadSize = 10 << 20

// formDateLayouts are accepted for date fields, most specific first.
var formDateLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

// Index lists the user's budgets, expenses and categories.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	index, err := h.svc.ListIndex(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, index)
}

// CreateBudget handles the creation of a new budget.
func (h *Handlers) CreateBudget(w http.ResponseWriter, r *http.Request) {
	in, err := parseBudgetForm(r, 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid form submission"})
		return
	}
	b, err := h.svc.CreateBudget(r.Context(), GetUserFromContext(r).ID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// EditBudget handles the update of an existing budget.
func (h *Handlers) EditBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.writeError(w, r, budget.ErrNotFound)
		return
	}
	in, err := parseBudgetForm(r, id)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid form submission"})
		return
	}
	b, err := h.svc.EditBudget(r.Context(), GetUserFromContext(r).ID, id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// DeleteBudget removes a budget with its expenses.
func (h *Handlers) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.svc.DeleteBudget(r.Context(), GetUserFromContext(r).ID, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportBudget sends a budget and its expenses as a CSV attachment.
func (h *Handlers) ExportBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.writeError(w, r, budget.ErrNotFound)
		return
	}
	b, err := h.svc.ExportBudget(r.Context(), GetUserFromContext(r).ID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := budget.WriteCSV(&buf, b); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", budget.ContentType)
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": budget.ExportFilename(b)}))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// ImportBudget creates a budget from the file uploaded in the "csvFile" field.
func (h *Handlers) ImportBudget(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid upload"})
		return
	}
	file, _, err := r.FormFile("csvFile")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No file was uploaded"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid upload"})
		return
	}
	defer file.Close()

	b, err := h.svc.ImportBudget(r.Context(), GetUserFromContext(r).ID, file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if b == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// AddExpense attaches a new expense to the budget in the path.
func (h *Handlers) AddExpense(w http.ResponseWriter, r *http.Request) {
	budgetID, ok := pathID(r)
	if !ok {
		h.writeError(w, r, budget.ErrNotFound)
		return
	}
	in, err := parseExpenseForm(r, 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid form submission"})
		return
	}
	e, err := h.svc.AddExpense(r.Context(), GetUserFromContext(r).ID, budgetID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// EditExpense handles the update of an existing expense.
func (h *Handlers) EditExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.writeError(w, r, budget.ErrNotFound)
		return
	}
	in, err := parseExpenseForm(r, id)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid form submission"})
		return
	}
	e, err := h.svc.EditExpense(r.Context(), GetUserFromContext(r).ID, id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteExpense removes an expense.
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.svc.DeleteExpense(r.Context(), GetUserFromContext(r).ID, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCategories returns the user's categories.
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.ListCategories(r.Context(), GetUserFromContext(r).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// CreateCategory returns the category named in the form, creating it if needed.
func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid form submission"})
		return
	}
	c, err := h.svc.CreateCategory(r.Context(), GetUserFromContext(r).ID, strings.TrimSpace(r.FormValue("name")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

// parseBudgetForm reads the budget fields. Missing or unparsable values are left
// zero so that validation reports them.
func parseBudgetForm(r *http.Request, id int64) (budget.BudgetInput, error) {
	if err := r.ParseForm(); err != nil {
		return budget.BudgetInput{}, err
	}
	return budget.BudgetInput{
		ID:        formInt(r, "id", id),
		Title:     r.FormValue("title"),
		Amount:    formAmount(r, "amount"),
		StartDate: formDate(r, "startDate"),
		EndDate:   formDate(r, "endDate"),
	}, nil
}

func parseExpenseForm(r *http.Request, id int64) (budget.ExpenseInput, error) {
	if err := r.ParseForm(); err != nil {
		return budget.ExpenseInput{}, err
	}
	return budget.ExpenseInput{
		ID:          formInt(r, "id", id),
		Amount:      formAmount(r, "amount"),
		Date:        formDate(r, "date"),
		Description: r.FormValue("description"),
		CategoryID:  formInt(r, "categoryId", 0),
		BudgetID:    formInt(r, "budgetId", 0),
	}, nil
}

func formInt(r *http.Request, key string, fallback int64) int64 {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func formAmount(r *http.Request, key string) decimal.Decimal {
	d, err := budget.ParseAmount(r.FormValue(key))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func formDate(r *http.Request, key string) time.Time {
	v := strings.TrimSpace(r.FormValue(key))
	for _, layout := range formDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
