package services

import (
	"reflect"
	"testing"

	"busline/internal/domain"
)

func TestAssignSeatsAutoLowestFirst(t *testing.T) {
	seats, err := AssignSeats(10, []int{1, 2, 5}, nil, 3)
	if err != nil {
		t.Fatalf("assign error: %v", err)
	}
	if want := []int{3, 4, 6}; !reflect.DeepEqual(seats, want) {
		t.Fatalf("got seats %v, want %v", seats, want)
	}
}

func TestAssignSeatsAutoNotEnough(t *testing.T) {
	_, err := AssignSeats(4, []int{1, 2, 3}, nil, 2)
	if !domain.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAssignSeatsManual(t *testing.T) {
	seats, err := AssignSeats(10, []int{4}, []int{7, 3}, 2)
	if err != nil {
		t.Fatalf("assign error: %v", err)
	}
	if want := []int{3, 7}; !reflect.DeepEqual(seats, want) {
		t.Fatalf("got seats %v, want %v", seats, want)
	}
}

func TestAssignSeatsManualConflictNamesSeats(t *testing.T) {
	_, err := AssignSeats(10, []int{2, 6}, []int{2, 6, 8}, 3)
	if !domain.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if want := "seats conflict: already taken: 2, 6"; err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestAssignSeatsManualCountMismatch(t *testing.T) {
	_, err := AssignSeats(10, nil, []int{1, 2}, 3)
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAssignSeatsManualOutOfRange(t *testing.T) {
	_, err := AssignSeats(10, nil, []int{0, 11}, 2)
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAssignSeatsManualDuplicate(t *testing.T) {
	_, err := AssignSeats(10, nil, []int{5, 5}, 2)
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
