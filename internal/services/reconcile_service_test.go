package services

import (
	"context"
	"testing"
	"time"

	"busline/internal/domain/models"
	"busline/internal/notify"
	"busline/internal/repositories"
	"busline/internal/session"

	"github.com/DATA-DOG/go-sqlmock"
)

var sweepNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func reconcileServiceWithDB(t *testing.T) (ReconcileService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	tripRepo := repositories.TripRepo{DB: db}
	bookingRepo := repositories.BookingRepo{DB: db}
	staffRepo := repositories.StaffRepo{DB: db}
	trackingRepo := repositories.TrackingRepo{DB: db}
	auditRepo := repositories.AuditRepo{DB: db}
	svc := ReconcileService{
		TripRepo:     tripRepo,
		BookingRepo:  bookingRepo,
		PaymentRepo:  repositories.PaymentRepo{DB: db},
		StaffRepo:    staffRepo,
		TrackingRepo: trackingRepo,
		AuditRepo:    auditRepo,
		Sessions:     session.Store{DB: db},
		Lifecycle: LifecycleService{
			TripRepo:     tripRepo,
			BookingRepo:  bookingRepo,
			StaffRepo:    staffRepo,
			TrackingRepo: trackingRepo,
			AuditRepo:    auditRepo,
			DB:           db,
		},
		Notifier: notify.Notifier{Pub: notify.LogPublisher{}},
		DB:       db,
	}
	return svc, mock, func() { db.Close() }
}

func stalePendingBooking() models.Booking {
	return models.Booking{
		ID:             9,
		Code:           "bbbb2222-0000-0000-0000-000000000000",
		TripID:         4,
		Phone:          "0822",
		Status:         models.BookingPending,
		PassengerCount: 2,
		TotalAmount:    500000,
		CreatedAt:      sweepNow.Add(-time.Hour),
	}
}

func emptyPaymentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "booking_id", "status", "transaction_id", "amount", "created_at"})
}

func expectQuietTail(mock sqlmock.Sqlmock, purged int64) {
	mock.ExpectQuery("SELECT (.+) FROM trips").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT s.id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "name", "role", "status"}))
	mock.ExpectExec("DELETE tp FROM tracking_positions").
		WillReturnResult(sqlmock.NewResult(0, purged))
}

func TestSweepReclaimsStaleBooking(t *testing.T) {
	svc, mock, done := reconcileServiceWithDB(t)
	defer done()

	mock.ExpectExec("DELETE FROM sessions").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("SELECT (.+) FROM payments").
		WillReturnRows(emptyPaymentRows())
	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WillReturnRows(bookingRows(stalePendingBooking()))

	mock.ExpectQuery("SELECT GET_LOCK").WithArgs("trip_ledger:4").
		WillReturnRows(sqlmock.NewRows([]string{"got"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bookings SET status = 'CANCELLED'").WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payments SET status = 'CANCELLED'").WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE trips SET available_slots").WithArgs(-2, int64(4), -2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT RELEASE_LOCK").WithArgs("trip_ledger:4").
		WillReturnRows(sqlmock.NewRows([]string{"released"}).AddRow(1))

	expectQuietTail(mock, 5)

	report := svc.RunSweep(context.Background(), sweepNow)
	if report.SessionsExpired != 2 {
		t.Fatalf("expected 2 expired sessions, got %d", report.SessionsExpired)
	}
	if report.BookingsCancelled != 1 || report.PaymentsTimedOut != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.RecordsPurged != 5 {
		t.Fatalf("expected 5 purged records, got %d", report.RecordsPurged)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSweepTimesOutAbandonedPayment(t *testing.T) {
	svc, mock, done := reconcileServiceWithDB(t)
	defer done()

	mock.ExpectExec("DELETE FROM sessions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM payments").
		WillReturnRows(emptyPaymentRows().
			AddRow(3, 9, "PENDING", "tx-3", 500000, sweepNow.Add(-10*time.Minute)))
	mock.ExpectQuery("SELECT (.+) FROM bookings").WithArgs(int64(9)).
		WillReturnRows(bookingRows(stalePendingBooking()))

	mock.ExpectQuery("SELECT GET_LOCK").WithArgs("trip_ledger:4").
		WillReturnRows(sqlmock.NewRows([]string{"got"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments SET status = 'TIMEOUT'").WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bookings SET status = 'CANCELLED'").WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payments SET status = 'CANCELLED'").WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE trips SET available_slots").WithArgs(-2, int64(4), -2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT RELEASE_LOCK").WithArgs("trip_ledger:4").
		WillReturnRows(sqlmock.NewRows([]string{"released"}).AddRow(1))

	// The same booking is no longer PENDING by the time the stale list runs.
	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WillReturnRows(noBookingRows())

	expectQuietTail(mock, 0)

	report := svc.RunSweep(context.Background(), sweepNow)
	if report.PaymentsTimedOut != 1 || report.BookingsCancelled != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSweepCountsTimeoutWhenBookingAlreadyClosed(t *testing.T) {
	svc, mock, done := reconcileServiceWithDB(t)
	defer done()

	mock.ExpectExec("DELETE FROM sessions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM payments").
		WillReturnRows(emptyPaymentRows().
			AddRow(3, 9, "PENDING", "tx-3", 500000, sweepNow.Add(-10*time.Minute)))
	mock.ExpectQuery("SELECT (.+) FROM bookings").WithArgs(int64(9)).
		WillReturnRows(bookingRows(stalePendingBooking()))

	mock.ExpectQuery("SELECT GET_LOCK").WithArgs("trip_ledger:4").
		WillReturnRows(sqlmock.NewRows([]string{"got"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments SET status = 'TIMEOUT'").WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// The booking was already closed elsewhere: no seats go back to the
	// ledger, but the payment status change still commits and counts.
	mock.ExpectExec("UPDATE bookings SET status = 'CANCELLED'").WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT RELEASE_LOCK").WithArgs("trip_ledger:4").
		WillReturnRows(sqlmock.NewRows([]string{"released"}).AddRow(1))

	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WillReturnRows(noBookingRows())

	expectQuietTail(mock, 0)

	report := svc.RunSweep(context.Background(), sweepNow)
	if report.PaymentsTimedOut != 1 {
		t.Fatalf("expected 1 timed-out payment, got %+v", report)
	}
	if report.BookingsCancelled != 0 {
		t.Fatalf("expected no cancelled bookings, got %+v", report)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSweepDefersBookingOnBusyLedger(t *testing.T) {
	svc, mock, done := reconcileServiceWithDB(t)
	defer done()

	mock.ExpectExec("DELETE FROM sessions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM payments").
		WillReturnRows(emptyPaymentRows())
	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WillReturnRows(bookingRows(stalePendingBooking()))

	// A live reservation holds the trip's ledger; the sweep moves on.
	mock.ExpectQuery("SELECT GET_LOCK").WithArgs("trip_ledger:4").
		WillReturnRows(sqlmock.NewRows([]string{"got"}).AddRow(0))

	expectQuietTail(mock, 0)

	report := svc.RunSweep(context.Background(), sweepNow)
	if report.BookingsCancelled != 0 {
		t.Fatalf("expected deferred booking, got %+v", report)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSweepSecondRunIsNoOp(t *testing.T) {
	svc, mock, done := reconcileServiceWithDB(t)
	defer done()

	mock.ExpectExec("DELETE FROM sessions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM payments").
		WillReturnRows(emptyPaymentRows())
	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WillReturnRows(bookingRows(stalePendingBooking()))

	mock.ExpectQuery("SELECT GET_LOCK").WithArgs("trip_ledger:4").
		WillReturnRows(sqlmock.NewRows([]string{"got"}).AddRow(1))
	mock.ExpectBegin()
	// Already cancelled by a previous pass: the guarded update matches nothing
	// and the seats are not restored twice.
	mock.ExpectExec("UPDATE bookings SET status = 'CANCELLED'").WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	mock.ExpectQuery("SELECT RELEASE_LOCK").WithArgs("trip_ledger:4").
		WillReturnRows(sqlmock.NewRows([]string{"released"}).AddRow(1))

	expectQuietTail(mock, 0)

	report := svc.RunSweep(context.Background(), sweepNow)
	if report.BookingsCancelled != 0 {
		t.Fatalf("expected no-op, got %+v", report)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
