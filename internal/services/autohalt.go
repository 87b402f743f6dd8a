package services

import (
	intdb "busline/internal/db"
	"busline/internal/domain/models"
	"busline/internal/notify"
	"busline/internal/repositories"
)

// LowSlotThreshold is the low-water mark: at or below this many remaining
// seats, online booking is suspended.
const LowSlotThreshold = 10

// AutoHaltMonitor evaluates the halt and sold-out rules once per successful
// reservation commit, inside the same transaction. The rules are a
// deterministic function of the post-delta ledger state and are never polled
// independently.
type AutoHaltMonitor struct {
	TripRepo  repositories.TripRepo
	AuditRepo repositories.AuditRepo
}

// Evaluate applies both rules against the post-commit seat count and returns
// the side-effect tasks to fire after the transaction commits. All writes
// (flags, audit) happen on q; the returned tasks carry everything that must
// stay outside the lock boundary.
func (m AutoHaltMonitor) Evaluate(q intdb.Queryer, trip models.Trip, available int, actor string) ([]notify.Task, error) {
	tasks := []notify.Task{}

	if available <= LowSlotThreshold && !trip.BookingHalted && !trip.AutoHaltSuppressed() {
		if err := m.TripRepo.SetHalt(q, trip.ID, models.HaltLowSlots); err != nil {
			return nil, err
		}
		if err := m.AuditRepo.Append(q, models.AuditEntry{
			Actor:     actor,
			Action:    models.ActionAutoHaltLowSlots,
			TripID:    &trip.ID,
			CompanyID: &trip.CompanyID,
			Detail:    map[string]any{"available_slots": available},
		}); err != nil {
			return nil, err
		}
		tasks = append(tasks, notify.Task{
			Kind:    notify.TaskAlert,
			TripID:  trip.ID,
			Context: map[string]any{"available_slots": available, "reason": string(models.HaltLowSlots)},
		})
	}

	if available == 0 && !trip.ReportGenerated {
		if err := m.TripRepo.MarkSoldOut(q, trip.ID); err != nil {
			return nil, err
		}
		if err := m.AuditRepo.Append(q, models.AuditEntry{
			Actor:     actor,
			Action:    models.ActionTripSoldOut,
			TripID:    &trip.ID,
			CompanyID: &trip.CompanyID,
		}); err != nil {
			return nil, err
		}
		tasks = append(tasks, notify.Task{
			Kind:   notify.TaskManifest,
			TripID: trip.ID,
			Reason: "sold_out",
		})
	}

	return tasks, nil
}
