package services

import (
	"bytes"
	"fmt"

	"busline/internal/domain/models"
	"busline/internal/repositories"
	"busline/internal/utils"

	"github.com/phpdave11/gofpdf"
)

// ManifestService renders the boarding list of confirmed passengers for a
// trip as a PDF.
type ManifestService struct {
	TripRepo      repositories.TripRepo
	PassengerRepo repositories.PassengerRepo
	RequestID     string
}

// Generate builds the manifest PDF and returns (bytes, filename).
func (s ManifestService) Generate(tripID int64) ([]byte, string, error) {
	trip, err := s.TripRepo.GetByID(nil, tripID)
	if err != nil {
		return nil, "", err
	}
	passengers, err := s.PassengerRepo.ListForManifest(tripID)
	if err != nil {
		return nil, "", err
	}
	utils.LogEvent(s.RequestID, "manifest", "generate",
		fmt.Sprintf("trip_id=%d passengers=%d", tripID, len(passengers)))
	return buildManifestPDF(trip, passengers)
}

func buildManifestPDF(trip models.Trip, passengers []models.Passenger) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Trip Manifest", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "TRIP MANIFEST")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	header := []string{
		fmt.Sprintf("Trip       : #%d", trip.ID),
		fmt.Sprintf("Route      : %s -> %s", trip.RouteFrom, trip.RouteTo),
		fmt.Sprintf("Departure  : %s", trip.DepartureTime.Format("2006-01-02 15:04")),
		fmt.Sprintf("Capacity   : %d (remaining %d)", trip.TotalSlots, trip.AvailableSlots),
		fmt.Sprintf("Passengers : %d", len(passengers)),
	}
	for _, line := range header {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(20, 8, "Seat", "1", 0, "C", false, 0, "")
	pdf.CellFormat(80, 8, "Name", "1", 0, "L", false, 0, "")
	pdf.CellFormat(45, 8, "Phone", "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 8, "Child", "1", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, p := range passengers {
		child := ""
		if p.IsChild {
			child = "yes"
		}
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", p.SeatNumber), "1", 0, "C", false, 0, "")
		pdf.CellFormat(80, 7, p.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 7, p.Phone, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, child, "1", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("MANIFEST_%d_%s.pdf", trip.ID, trip.DepartureTime.Format("20060102"))
	return buf.Bytes(), filename, nil
}
