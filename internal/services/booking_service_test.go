package services

import (
	"context"
	"testing"
	"time"

	"busline/internal/domain"
	"busline/internal/domain/models"
	"busline/internal/notify"
	"busline/internal/repositories"

	"github.com/DATA-DOG/go-sqlmock"
)

func bookingServiceWithDB(t *testing.T) (BookingService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	tripRepo := repositories.TripRepo{DB: db}
	auditRepo := repositories.AuditRepo{DB: db}
	svc := BookingService{
		TripRepo:      tripRepo,
		BookingRepo:   repositories.BookingRepo{DB: db},
		PassengerRepo: repositories.PassengerRepo{DB: db},
		PaymentRepo:   repositories.PaymentRepo{DB: db},
		AuditRepo:     auditRepo,
		Monitor:       AutoHaltMonitor{TripRepo: tripRepo, AuditRepo: auditRepo},
		Notifier:      notify.Notifier{Pub: notify.LogPublisher{}},
		DB:            db,
	}
	return svc, mock, func() { db.Close() }
}

func tripRows(tr models.Trip) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "company_id", "route_from", "route_to", "departure_time",
		"estimated_duration_min", "total_slots", "available_slots", "price_per_seat",
		"status", "booking_halted", "halt_reason", "halt_override", "report_generated",
		"driver_id", "conductor_id", "actual_departure_time", "actual_arrival_time",
		"tracking_active", "tracking_token", "commission_percent", "disable_auto_halt",
	}).AddRow(
		tr.ID, tr.CompanyID, tr.RouteFrom, tr.RouteTo, tr.DepartureTime,
		tr.EstimatedDurationMin, tr.TotalSlots, tr.AvailableSlots, tr.PricePerSeat,
		string(tr.Status), tr.BookingHalted, string(tr.HaltReason), string(tr.HaltOverride), tr.ReportGenerated,
		nil, nil, nil, nil,
		tr.TrackingActive, tr.TrackingToken, tr.CommissionPercent, tr.CompanyAutoHaltOff,
	)
}

func noBookingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "code", "trip_id", "user_id", "phone", "status", "passenger_count",
		"total_amount", "company_share", "platform_fee", "created_at",
	})
}

func bookingRows(b models.Booking) *sqlmock.Rows {
	return noBookingRows().AddRow(
		b.ID, b.Code, b.TripID, nil, b.Phone, string(b.Status), b.PassengerCount,
		b.TotalAmount, b.CompanyShare, b.PlatformFee, b.CreatedAt,
	)
}

func heldSeatRows(n int) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"seat_number"})
	for seat := 1; seat <= n; seat++ {
		rows.AddRow(seat)
	}
	return rows
}

func bookableTrip(available int) models.Trip {
	return models.Trip{
		ID:                7,
		CompanyID:         2,
		RouteFrom:         "Jakarta",
		RouteTo:           "Bandung",
		DepartureTime:     time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		TotalSlots:        40,
		AvailableSlots:    available,
		PricePerSeat:      250000,
		Status:            models.TripScheduled,
		HaltOverride:      models.OverrideNone,
		CommissionPercent: 10,
	}
}

func guestPassengers(n int) []models.PassengerInput {
	out := make([]models.PassengerInput, n)
	for i := range out {
		out[i] = models.PassengerInput{Name: "Passenger", Phone: "0811"}
	}
	return out
}

func TestReserveTriggersAutoHaltAtThreshold(t *testing.T) {
	svc, mock, done := bookingServiceWithDB(t)
	defer done()

	mock.ExpectQuery("SELECT GET_LOCK").WithArgs("trip_ledger:7").
		WillReturnRows(sqlmock.NewRows([]string{"got"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM trips").WithArgs(int64(7)).
		WillReturnRows(tripRows(bookableTrip(12)))
	mock.ExpectQuery("SELECT (.+) FROM bookings").WithArgs(int64(7), "0811").
		WillReturnRows(noBookingRows())
	mock.ExpectQuery("SELECT p.seat_number").WithArgs(int64(7), int64(0)).
		WillReturnRows(heldSeatRows(28))
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnResult(sqlmock.NewResult(55, 1))
	mock.ExpectExec("DELETE FROM passengers").WithArgs(int64(55)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO passengers").
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE trips SET available_slots").WithArgs(3, int64(7), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// 12 - 3 = 9 crosses the low-water mark.
	mock.ExpectExec("UPDATE trips SET booking_halted = 1").WithArgs("LOW_SLOTS", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT RELEASE_LOCK").WithArgs("trip_ledger:7").
		WillReturnRows(sqlmock.NewRows([]string{"released"}).AddRow(1))

	booking, err := svc.Reserve(context.Background(), ReserveRequest{
		TripID:     7,
		Passengers: guestPassengers(3),
		Identity:   Identity{Kind: IdentityGuest, Phone: "0811"},
	})
	if err != nil {
		t.Fatalf("reserve error: %v", err)
	}
	if booking.ID != 55 || booking.PassengerCount != 3 {
		t.Fatalf("unexpected booking: %+v", booking)
	}
	if booking.TotalAmount != 750000 || booking.CompanyShare != 675000 || booking.PlatformFee != 75000 {
		t.Fatalf("unexpected money split: %+v", booking)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveSoldOutGeneratesManifestTask(t *testing.T) {
	svc, mock, done := bookingServiceWithDB(t)
	defer done()

	mock.ExpectQuery("SELECT GET_LOCK").WithArgs("trip_ledger:7").
		WillReturnRows(sqlmock.NewRows([]string{"got"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM trips").WithArgs(int64(7)).
		WillReturnRows(tripRows(bookableTrip(3)))
	mock.ExpectQuery("SELECT (.+) FROM bookings").WithArgs(int64(7), "0811").
		WillReturnRows(noBookingRows())
	mock.ExpectQuery("SELECT p.seat_number").WithArgs(int64(7), int64(0)).
		WillReturnRows(heldSeatRows(37))
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnResult(sqlmock.NewResult(56, 1))
	mock.ExpectExec("DELETE FROM passengers").WithArgs(int64(56)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO passengers").
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE trips SET available_slots").WithArgs(3, int64(7), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Zero seats left: halt and sold-out both fire.
	mock.ExpectExec("UPDATE trips SET booking_halted = 1").WithArgs("LOW_SLOTS", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("UPDATE trips SET report_generated = 1").WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT RELEASE_LOCK").WithArgs("trip_ledger:7").
		WillReturnRows(sqlmock.NewRows([]string{"released"}).AddRow(1))

	if _, err := svc.Reserve(context.Background(), ReserveRequest{
		TripID:     7,
		Passengers: guestPassengers(3),
		Identity:   Identity{Kind: IdentityGuest, Phone: "0811"},
	}); err != nil {
		t.Fatalf("reserve error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveLedgerBusyIsRetryableConflict(t *testing.T) {
	svc, mock, done := bookingServiceWithDB(t)
	defer done()

	mock.ExpectQuery("SELECT GET_LOCK").WithArgs("trip_ledger:7").
		WillReturnRows(sqlmock.NewRows([]string{"got"}).AddRow(0))

	_, err := svc.Reserve(context.Background(), ReserveRequest{
		TripID:     7,
		Passengers: guestPassengers(1),
		Identity:   Identity{Kind: IdentityGuest, Phone: "0811"},
	})
	if !domain.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !domain.IsRetryable(err) {
		t.Fatal("ledger-busy conflict must be retryable")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveHaltedTrip(t *testing.T) {
	svc, mock, done := bookingServiceWithDB(t)
	defer done()

	trip := bookableTrip(9)
	trip.BookingHalted = true
	trip.HaltReason = models.HaltLowSlots

	mock.ExpectQuery("SELECT GET_LOCK").WithArgs("trip_ledger:7").
		WillReturnRows(sqlmock.NewRows([]string{"got"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM trips").WithArgs(int64(7)).
		WillReturnRows(tripRows(trip))
	mock.ExpectRollback()
	mock.ExpectQuery("SELECT RELEASE_LOCK").WithArgs("trip_ledger:7").
		WillReturnRows(sqlmock.NewRows([]string{"released"}).AddRow(1))

	_, err := svc.Reserve(context.Background(), ReserveRequest{
		TripID:     7,
		Passengers: guestPassengers(1),
		Identity:   Identity{Kind: IdentityGuest, Phone: "0811"},
	})
	if !domain.IsState(err) {
		t.Fatalf("expected state error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveUpdateInPlaceUsesSignedDelta(t *testing.T) {
	svc, mock, done := bookingServiceWithDB(t)
	defer done()

	existing := models.Booking{
		ID:             21,
		Code:           "aaaa1111-0000-0000-0000-000000000000",
		TripID:         7,
		Phone:          "0811",
		Status:         models.BookingPending,
		PassengerCount: 3,
		TotalAmount:    750000,
		CreatedAt:      time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC),
	}

	mock.ExpectQuery("SELECT GET_LOCK").WithArgs("trip_ledger:7").
		WillReturnRows(sqlmock.NewRows([]string{"got"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM trips").WithArgs(int64(7)).
		WillReturnRows(tripRows(bookableTrip(20)))
	mock.ExpectQuery("SELECT (.+) FROM bookings").WithArgs(int64(7), "0811").
		WillReturnRows(bookingRows(existing))
	mock.ExpectQuery("SELECT p.seat_number").WithArgs(int64(7), int64(21)).
		WillReturnRows(heldSeatRows(17))
	mock.ExpectExec("UPDATE bookings SET passenger_count").
		WithArgs(2, int64(500000), int64(450000), int64(50000), int64(21)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM passengers").WithArgs(int64(21)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	for i := 0; i < 2; i++ {
		mock.ExpectExec("INSERT INTO passengers").
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectExec("UPDATE payments SET amount").WithArgs(int64(500000), int64(21)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	// Shrinking from 3 to 2 seats releases one back to the ledger.
	mock.ExpectExec("UPDATE trips SET available_slots").WithArgs(-1, int64(7), -1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT RELEASE_LOCK").WithArgs("trip_ledger:7").
		WillReturnRows(sqlmock.NewRows([]string{"released"}).AddRow(1))

	booking, err := svc.Reserve(context.Background(), ReserveRequest{
		TripID:     7,
		Passengers: guestPassengers(2),
		Identity:   Identity{Kind: IdentityGuest, Phone: "0811"},
	})
	if err != nil {
		t.Fatalf("reserve error: %v", err)
	}
	if booking.ID != 21 || booking.PassengerCount != 2 || booking.TotalAmount != 500000 {
		t.Fatalf("unexpected booking: %+v", booking)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveIdenticalResubmissionSucceeds(t *testing.T) {
	svc, mock, done := bookingServiceWithDB(t)
	defer done()

	existing := models.Booking{
		ID:             21,
		Code:           "aaaa1111-0000-0000-0000-000000000000",
		TripID:         7,
		Phone:          "0811",
		Status:         models.BookingPending,
		PassengerCount: 2,
		TotalAmount:    500000,
		CreatedAt:      time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC),
	}

	mock.ExpectQuery("SELECT GET_LOCK").WithArgs("trip_ledger:7").
		WillReturnRows(sqlmock.NewRows([]string{"got"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM trips").WithArgs(int64(7)).
		WillReturnRows(tripRows(bookableTrip(20)))
	mock.ExpectQuery("SELECT (.+) FROM bookings").WithArgs(int64(7), "0811").
		WillReturnRows(bookingRows(existing))
	mock.ExpectQuery("SELECT p.seat_number").WithArgs(int64(7), int64(21)).
		WillReturnRows(heldSeatRows(18))
	// Identical values: MySQL matches the row but changes nothing and
	// reports zero affected rows. The reservation must still go through.
	mock.ExpectExec("UPDATE bookings SET passenger_count").
		WithArgs(2, int64(500000), int64(450000), int64(50000), int64(21)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM passengers").WithArgs(int64(21)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	for i := 0; i < 2; i++ {
		mock.ExpectExec("INSERT INTO passengers").
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectExec("UPDATE payments SET amount").WithArgs(int64(500000), int64(21)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE trips SET available_slots").WithArgs(0, int64(7), 0).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT RELEASE_LOCK").WithArgs("trip_ledger:7").
		WillReturnRows(sqlmock.NewRows([]string{"released"}).AddRow(1))

	booking, err := svc.Reserve(context.Background(), ReserveRequest{
		TripID:     7,
		Passengers: guestPassengers(2),
		Identity:   Identity{Kind: IdentityGuest, Phone: "0811"},
	})
	if err != nil {
		t.Fatalf("identical resubmission must succeed, got: %v", err)
	}
	if booking.ID != 21 || booking.PassengerCount != 2 || booking.TotalAmount != 500000 {
		t.Fatalf("unexpected booking: %+v", booking)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveValidation(t *testing.T) {
	svc, _, done := bookingServiceWithDB(t)
	defer done()

	child := models.PassengerInput{Name: "Kid", IsChild: true}
	adult := models.PassengerInput{Name: "Adult", Phone: "0811"}

	cases := []struct {
		name string
		req  ReserveRequest
	}{
		{"missing trip", ReserveRequest{Passengers: guestPassengers(1)}},
		{"no passengers", ReserveRequest{TripID: 7}},
		{"too many passengers", ReserveRequest{TripID: 7, Passengers: guestPassengers(6)}},
		{"all children", ReserveRequest{TripID: 7, Passengers: []models.PassengerInput{child, child}}},
		{"too many children", ReserveRequest{TripID: 7, Passengers: []models.PassengerInput{adult, child, child, child, child}}},
		{"nameless passenger", ReserveRequest{TripID: 7, Passengers: []models.PassengerInput{{Phone: "0811"}}}},
		{"guest without phone", ReserveRequest{TripID: 7, Passengers: []models.PassengerInput{{Name: "Anon"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Reserve(context.Background(), tc.req)
			if !domain.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestReserveInsufficientSeats(t *testing.T) {
	svc, mock, done := bookingServiceWithDB(t)
	defer done()

	mock.ExpectQuery("SELECT GET_LOCK").WithArgs("trip_ledger:7").
		WillReturnRows(sqlmock.NewRows([]string{"got"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM trips").WithArgs(int64(7)).
		WillReturnRows(tripRows(bookableTrip(2)))
	mock.ExpectQuery("SELECT (.+) FROM bookings").WithArgs(int64(7), "0811").
		WillReturnRows(noBookingRows())
	mock.ExpectRollback()
	mock.ExpectQuery("SELECT RELEASE_LOCK").WithArgs("trip_ledger:7").
		WillReturnRows(sqlmock.NewRows([]string{"released"}).AddRow(1))

	_, err := svc.Reserve(context.Background(), ReserveRequest{
		TripID:     7,
		Passengers: guestPassengers(3),
		Identity:   Identity{Kind: IdentityGuest, Phone: "0811"},
	})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
