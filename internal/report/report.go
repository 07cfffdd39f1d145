// Package report exports the booking ledger for the transport office.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/phpdave11/gofpdf"

	"campus-bus-backend/internal/domain"
	"campus-bus-backend/internal/model"
	"campus-bus-backend/internal/store"
)

// Header is the column order shared by every export format.
var Header = []string{"Booking ID", "Student Name", "Student Email", "Bus Number", "Route", "Seat Number", "Status", "Date"}

// Row is one booking flattened for export.
type Row struct {
	BookingID    string
	StudentName  string
	StudentEmail string
	BusNumber    string
	Route        string
	SeatNumber   int
	Status       model.BookingStatus
	Date         string
}

func (r Row) fields() []string {
	return []string{r.BookingID, r.StudentName, r.StudentEmail, r.BusNumber, r.Route,
		strconv.Itoa(r.SeatNumber), string(r.Status), r.Date}
}

// Generator builds booking reports.
type Generator struct {
	store store.Store
	loc   *time.Location
}

// NewGenerator creates a report generator. Dates are rendered in loc.
func NewGenerator(s store.Store, loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{store: s, loc: loc}
}

// Rows returns every booking, newest first.
func (g *Generator) Rows(ctx context.Context) ([]Row, error) {
	bookings, err := g.store.ListAllBookings(ctx)
	if err != nil {
		return nil, domain.NewInternalError("failed to load bookings", err)
	}
	if len(bookings) == 0 {
		return nil, domain.NewNotFoundError("bookings", "")
	}

	rows := make([]Row, 0, len(bookings))
	for _, b := range bookings {
		row := Row{
			BookingID:    b.ID,
			StudentName:  "N/A",
			StudentEmail: "N/A",
			BusNumber:    b.BusNumber,
			Route:        b.Route,
			SeatNumber:   b.SeatNumber,
			Status:       b.Status,
			Date:         b.CreatedAt.In(g.loc).Format("2006-01-02"),
		}
		if b.User != nil {
			row.StudentName = b.User.Name
			if email := b.User.ContactEmail(); email != "" {
				row.StudentEmail = email
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CSV renders rows as a CSV document with a header line.
func CSV(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write(r.fields()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var pdfWidths = []float64{44, 40, 52, 22, 50, 14, 22, 22}

// PDF renders rows as a landscape A4 table.
func PDF(rows []Row, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Bookings Report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Bus Bookings Report")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Generated %s, %d bookings", generatedAt.Format("2006-01-02 15:04"), len(rows)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range Header {
		pdf.CellFormat(pdfWidths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 7)
	for _, r := range rows {
		for i, v := range r.fields() {
			pdf.CellFormat(pdfWidths[i], 6, truncate(pdf, v, pdfWidths[i]-2), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
