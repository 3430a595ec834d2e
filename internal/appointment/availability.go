package appointment

import (
	"github.com/google/uuid"
)

// AvailabilityResult reports whether a proposed interval is free and, when it
// is not, every appointment it collides with. Conflicts is empty iff
// Available is true.
type AvailabilityResult struct {
	Available bool
	Conflicts []Appointment
}

// CheckSlot tests the proposed interval against every candidate appointment
// on the same date. Candidates must already exclude soft-deleted rows.
// excludeID skips the appointment being rescheduled; pass uuid.Nil otherwise.
//
// The check is advisory: two concurrent requests can both see an open slot
// and both commit. The store's indexes make that detectable after the fact
// rather than impossible.
func CheckSlot(proposed Interval, candidates []Appointment, excludeID uuid.UUID) AvailabilityResult {
	var conflicts []Appointment

	for _, cand := range candidates {
		if excludeID != uuid.Nil && cand.ID == excludeID {
			continue
		}

		slot, ok := slotOf(&cand)
		if !ok {
			continue
		}

		if proposed.Overlaps(slot) {
			conflicts = append(conflicts, cand)
		}
	}

	return AvailabilityResult{
		Available: len(conflicts) == 0,
		Conflicts: conflicts,
	}
}
