package export

import (
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/phpdave11/gofpdf"
)

const (
	maxStatementRows = 200
	pageBreakY       = 270
)

var (
	historyCols     = []float64{60, 60}
	transactionCols = []float64{34, 26, 86, 36}
)

// Statement writes a PDF with the balance, the day-by-day history and the
// transaction list of v.
func Statement(w io.Writer, v *models.PiggyBankView, generatedAt time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(14, 14, 14)
	pdf.SetTitle(tr(v.Name+" statement"), false)
	pdf.AddPage()

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr(displayName(v.Name)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.Cell(0, 6, "Role: "+string(v.Role))
	pdf.Ln(5)
	if !v.ConnectedAt.IsZero() {
		pdf.Cell(0, 6, "Connected: "+v.ConnectedAt.Format("2006-01-02"))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(248, 248, 248)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 10, "Balance", "1", 1, "C", true, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 10, balanceText(v), "1", 1, "C", false, 0, "")
	pdf.Ln(6)

	if len(v.History) > 0 {
		historyHeader(pdf)
		pdf.SetFont("Helvetica", "", 9)
		for _, p := range v.History {
			if pdf.GetY() > pageBreakY {
				pdf.AddPage()
				historyHeader(pdf)
				pdf.SetFont("Helvetica", "", 9)
			}
			pdf.CellFormat(historyCols[0], 7, p.Day, "1", 0, "C", false, 0, "")
			pdf.CellFormat(historyCols[1], 7, p.Balance.StringFixed(2), "1", 1, "R", false, 0, "")
		}
		pdf.Ln(6)
	}

	transactionHeader(pdf)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(30, 30, 30)
	for i, t := range v.Transactions {
		if i >= maxStatementRows {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.CellFormat(0, 8, "truncated (too many rows)", "1", 1, "C", false, 0, "")
			break
		}
		if pdf.GetY() > pageBreakY {
			pdf.AddPage()
			transactionHeader(pdf)
			pdf.SetFont("Helvetica", "", 9)
		}
		pdf.CellFormat(transactionCols[0], 8, t.CreatedAt.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(transactionCols[1], 8, strings.ToUpper(string(t.Type)), "1", 0, "C", false, 0, "")
		pdf.CellFormat(transactionCols[2], 8, tr(trimTo(t.Title, 60)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(transactionCols[3], 8, t.Amount.StringFixed(2), "1", 1, "R", false, 0, "")
	}

	pdf.SetY(-18)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 10, "Generated "+generatedAt.UTC().Format(time.RFC3339), "", 0, "C", false, 0, "")

	return pdf.Output(w)
}

func historyHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(245, 245, 245)
	pdf.CellFormat(historyCols[0], 8, "DAY", "1", 0, "C", true, 0, "")
	pdf.CellFormat(historyCols[1], 8, "END OF DAY", "1", 1, "R", true, 0, "")
}

func transactionHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(245, 245, 245)
	pdf.CellFormat(transactionCols[0], 8, "DATE", "1", 0, "C", true, 0, "")
	pdf.CellFormat(transactionCols[1], 8, "TYPE", "1", 0, "C", true, 0, "")
	pdf.CellFormat(transactionCols[2], 8, "TITLE", "1", 0, "L", true, 0, "")
	pdf.CellFormat(transactionCols[3], 8, "AMOUNT", "1", 1, "R", true, 0, "")
}

func balanceText(v *models.PiggyBankView) string {
	if v.Broken() {
		return "Unreadable"
	}
	return v.Balance.StringFixed(2)
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Piggy bank"
	}
	return name
}

func trimTo(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "..."
}
