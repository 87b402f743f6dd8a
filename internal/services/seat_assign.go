package services

import (
	"fmt"
	"sort"
	"strings"

	"busline/internal/domain"
)

// AssignSeats resolves seat numbers for a reservation against the set of
// seats already held on the trip.
//
// Manual mode (selected non-empty): the list must cover every passenger,
// every seat must fall in [1, totalSlots], and none may collide with a held
// seat. Violations name the offending seat numbers so the client can
// re-render its seat map.
//
// Auto mode (selected empty): deterministic lowest-available-first.
//
// Mixed mode is not supported: a request supplies a complete seat list or
// none at all, enforced by the count check.
func AssignSeats(totalSlots int, held []int, selected []int, count int) ([]int, error) {
	taken := make(map[int]bool, len(held))
	for _, seat := range held {
		taken[seat] = true
	}

	if len(selected) > 0 {
		if len(selected) != count {
			return nil, domain.ValidationError{
				Field: "selected_seats",
				Msg:   fmt.Sprintf("expected %d seats, got %d", count, len(selected)),
			}
		}
		seen := make(map[int]bool, len(selected))
		outOfRange := []int{}
		conflicts := []int{}
		for _, seat := range selected {
			if seat < 1 || seat > totalSlots {
				outOfRange = append(outOfRange, seat)
				continue
			}
			if seen[seat] {
				return nil, domain.ValidationError{
					Field: "selected_seats",
					Msg:   fmt.Sprintf("seat %d requested twice", seat),
				}
			}
			seen[seat] = true
			if taken[seat] {
				conflicts = append(conflicts, seat)
			}
		}
		if len(outOfRange) > 0 {
			return nil, domain.ValidationError{
				Field: "selected_seats",
				Msg:   "seats out of range: " + joinSeats(outOfRange),
			}
		}
		if len(conflicts) > 0 {
			return nil, domain.ConflictError{
				Resource: "seats",
				Msg:      "already taken: " + joinSeats(conflicts),
			}
		}
		out := make([]int, len(selected))
		copy(out, selected)
		sort.Ints(out)
		return out, nil
	}

	out := make([]int, 0, count)
	for seat := 1; seat <= totalSlots && len(out) < count; seat++ {
		if !taken[seat] {
			out = append(out, seat)
		}
	}
	if len(out) < count {
		return nil, domain.ConflictError{Resource: "seats", Msg: "not enough free seats"}
	}
	return out, nil
}

func joinSeats(seats []int) string {
	sort.Ints(seats)
	parts := make([]string, len(seats))
	for i, s := range seats {
		parts[i] = fmt.Sprintf("%d", s)
	}
	return strings.Join(parts, ", ")
}
