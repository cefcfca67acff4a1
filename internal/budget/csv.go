package budget

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"budget-tracker/internal/models"

	"github.com/shopspring/decimal"
)

const (
	// Separator is the field separator of the budget file. It is not a comma so that
	// decimal amounts written with a comma never collide with it.
	Separator = ';'

	// ContentType is the MIME type of an exported budget.
	ContentType = "text/csv"

	// DateLayout is the short date format used on export.
	DateLayout = "01/02/2006"
)

var (
	budgetHeader  = []string{"Title", "Amount", "StartDate", "EndDate"}
	expenseHeader = []string{"Amount", "Date", "Category", "Description"}

	// dateLayouts are tried in order on import.
	dateLayouts = []string{"1/2/2006", "2006-01-02", time.RFC3339}

	ErrEmptyFile = errors.New("file is empty")
)

// pendingCategory stands in for a category that will be created once its row validates.
const pendingCategory int64 = -1

// ExportFilename returns the download name of an exported budget.
func ExportFilename(b *models.Budget) string {
	return b.Title + "_budget.csv"
}

// WriteCSV writes b and its expenses in the import/export format:
//
//	Title;Amount;StartDate;EndDate
//	<title>;<amount>;<start>;<end>
//	Amount;Date;Category;Description
//	<amount>;<date>;<category>;<description>   (one per expense)
func WriteCSV(w io.Writer, b *models.Budget) error {
	cw := csv.NewWriter(w)
	cw.Comma = Separator

	records := [][]string{
		budgetHeader,
		{b.Title, b.Amount.String(), FormatDate(b.StartDate), FormatDate(b.EndDate)},
		expenseHeader,
	}
	for _, e := range b.Expenses {
		category := ""
		if e.Category != nil {
			category = e.Category.Name
		}
		records = append(records, []string{e.Amount.String(), FormatDate(e.Date), category, e.Description})
	}

	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write budget %d: %w", b.ID, err)
	}
	return nil
}

// FormatDate renders t in the export date format.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate accepts the export format (with or without leading zeros) and ISO dates.
// The result is in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// ParseAmount parses a decimal amount. A comma is accepted as the decimal
// mark when the text has no dot.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number: %q", s)
	}
	return d, nil
}

// Importer turns an uploaded budget file into a persisted budget and expenses.
type Importer struct {
	repo     Repository
	resolver *CategoryResolver
	strict   bool
}

// NewImporter creates an importer. When strict is set the imported budget and every
// row go through ValidateBudget and ValidateExpense; otherwise only the file format
// is checked.
func NewImporter(repo Repository, resolver *CategoryResolver, strict bool) *Importer {
	return &Importer{repo: repo, resolver: resolver, strict: strict}
}

// Import reads r for userID. The budget is persisted as soon as its line is parsed,
// categories are created as rows reference them, and expenses are persisted in one
// batch at the end. A file holding only the first header is a no-op and returns a nil
// budget. Writes made before a failure are not rolled back.
func (im *Importer) Import(ctx context.Context, r io.Reader, userID int64) (*models.Budget, error) {
	rr := newRecordReader(r)

	if err := rr.header(budgetHeader); err != nil {
		return nil, err
	}

	rec, line, err := rr.next()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b, err := parseBudget(rec, line, userID)
	if err != nil {
		return nil, err
	}
	if im.strict {
		if err := ValidateBudget(b); err != nil {
			return nil, err
		}
	}
	if err := im.repo.CreateBudget(ctx, b); err != nil {
		return nil, fmt.Errorf("create imported budget: %w", err)
	}

	if err := rr.header(expenseHeader); err != nil {
		if err == io.EOF {
			return b, nil
		}
		return b, err
	}

	var staged []*models.Expense
	for {
		if err := ctx.Err(); err != nil {
			return b, err
		}

		rec, line, err := rr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return b, err
		}

		e, err := im.parseExpense(ctx, rec, line, b)
		if err != nil {
			return b, err
		}
		staged = append(staged, e)
	}

	if len(staged) > 0 {
		if err := im.repo.CreateExpenses(ctx, staged); err != nil {
			return b, fmt.Errorf("create imported expenses: %w", err)
		}
	}
	for _, e := range staged {
		b.Expenses = append(b.Expenses, *e)
	}
	return b, nil
}

func (im *Importer) parseExpense(ctx context.Context, rec []string, line int, b *models.Budget) (*models.Expense, error) {
	if len(rec) != len(expenseHeader) {
		return nil, &FormatError{Line: line, Err: fmt.Errorf("expected %d fields, got %d", len(expenseHeader), len(rec))}
	}
	amount, err := ParseAmount(rec[0])
	if err != nil {
		return nil, &FormatError{Line: line, Field: "amount", Err: err}
	}
	date, err := ParseDate(rec[1])
	if err != nil {
		return nil, &FormatError{Line: line, Field: "date", Err: err}
	}

	e := models.NewExpense(amount, date, rec[3], models.NoCategory, b.ID)
	if im.strict {
		return im.validatedExpense(ctx, e, b, rec[2])
	}

	category, err := im.resolver.ResolveOrCreate(ctx, b.UserID, rec[2])
	if err != nil {
		return nil, err
	}
	e.CategoryID = category.ID
	e.Category = category
	return e, nil
}

// validatedExpense runs ValidateExpense on e before creating a missing category,
// so a rejected row leaves nothing behind.
func (im *Importer) validatedExpense(ctx context.Context, e *models.Expense, b *models.Budget, name string) (*models.Expense, error) {
	var category *models.Category
	if name != "" {
		c, err := im.resolver.Find(ctx, b.UserID, name)
		switch {
		case err == nil:
			category = c
			e.CategoryID = c.ID
		case errors.Is(err, ErrNotFound):
			e.CategoryID = pendingCategory
		default:
			return nil, err
		}
	}
	if err := ValidateExpense(e, b); err != nil {
		return nil, err
	}

	if category == nil {
		c, err := im.resolver.ResolveOrCreate(ctx, b.UserID, name)
		if err != nil {
			return nil, err
		}
		category = c
	}
	e.CategoryID = category.ID
	e.Category = category
	return e, nil
}

func parseBudget(rec []string, line int, userID int64) (*models.Budget, error) {
	if len(rec) != len(budgetHeader) {
		return nil, &FormatError{Line: line, Err: fmt.Errorf("expected %d fields, got %d", len(budgetHeader), len(rec))}
	}
	amount, err := ParseAmount(rec[1])
	if err != nil {
		return nil, &FormatError{Line: line, Field: "amount", Err: err}
	}
	start, err := ParseDate(rec[2])
	if err != nil {
		return nil, &FormatError{Line: line, Field: "startDate", Err: err}
	}
	end, err := ParseDate(rec[3])
	if err != nil {
		return nil, &FormatError{Line: line, Field: "endDate", Err: err}
	}
	return &models.Budget{
		Title:     rec[0],
		Amount:    amount,
		StartDate: start,
		EndDate:   end,
		UserID:    userID,
	}, nil
}

// recordReader wraps csv.Reader, skipping whitespace-only lines and
// converting parse failures to FormatError.
type recordReader struct {
	cr    *csv.Reader
	first bool
}

func newRecordReader(r io.Reader) *recordReader {
	cr := csv.NewReader(r)
	cr.Comma = Separator
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return &recordReader{cr: cr, first: true}
}

func (rr *recordReader) next() ([]string, int, error) {
	for {
		rec, err := rr.cr.Read()
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, perr.Line, &FormatError{Line: perr.Line, Err: perr.Err}
			}
			return nil, 0, fmt.Errorf("read budget file: %w", err)
		}
		line, _ := rr.cr.FieldPos(0)
		if rr.first {
			rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
			rr.first = false
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		return rec, line, nil
	}
}

// header consumes the next record and checks it matches want exactly.
func (rr *recordReader) header(want []string) error {
	isFirst := rr.first
	rec, line, err := rr.next()
	if err == io.EOF {
		if isFirst {
			return &FormatError{Line: 1, Err: ErrEmptyFile}
		}
		return io.EOF
	}
	if err != nil {
		return err
	}
	expected := strings.Join(want, string(Separator))
	if strings.Join(rec, string(Separator)) != expected {
		return &FormatError{Line: line, Err: fmt.Errorf("expected header %q", expected)}
	}
	return nil
}
