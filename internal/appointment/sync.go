package appointment

import (
	"context"
	"fmt"
	"log"

	"github.com/reflexoperu/clinic-appointments/internal/ghl"
)

type SyncStatus string

const (
	SyncSkipped SyncStatus = "skipped" // appointment carries no external ids
	SyncOK      SyncStatus = "ok"
	SyncFailed  SyncStatus = "failed"
)

// SyncResult tells the caller which half of {local change, external sync}
// happened. A failed sync never undoes the local creation.
type SyncResult struct {
	Status     SyncStatus
	ExternalID string
	Err        error
}

// Syncer mirrors an appointment into the external scheduling service and
// returns the event identifier it assigned.
type Syncer interface {
	SyncAppointment(ctx context.Context, appt *Appointment) (string, error)
}

// GHLSyncer is the production Syncer backed by the GHL calendar API.
type GHLSyncer struct {
	client            *ghl.Client
	defaultCalendarID string
}

func NewGHLSyncer(client *ghl.Client, defaultCalendarID string) *GHLSyncer {
	return &GHLSyncer{
		client:            client,
		defaultCalendarID: defaultCalendarID,
	}
}

func (s *GHLSyncer) SyncAppointment(ctx context.Context, appt *Appointment) (string, error) {
	slot, ok := slotOf(appt)
	if !ok {
		return "", fmt.Errorf("appointment %s has no resolvable time slot", appt.ID)
	}

	title := fmt.Sprintf("Cita %s", appt.ID)
	if appt.Title != nil && *appt.Title != "" {
		title = *appt.Title
	}

	var description string
	if appt.Observation != nil {
		description = *appt.Observation
	}

	calendarID := s.defaultCalendarID
	if appt.GHLCalendarID != nil && *appt.GHLCalendarID != "" {
		calendarID = *appt.GHLCalendarID
	}

	var locationID string
	if appt.GHLLocationID != nil {
		locationID = *appt.GHLLocationID
	}

	resp, err := s.client.CreateEvent(ctx, ghl.CreateEventRequest{
		CalendarID:  calendarID,
		LocationID:  locationID,
		ContactID:   derefString(appt.GHLContactID),
		Title:       title,
		StartTime:   FormatInstant(slot.Start),
		EndTime:     FormatInstant(slot.End),
		Description: description,
	})
	if err != nil {
		return "", err
	}

	return resp.ID, nil
}

// Orchestrator runs the post-commit sync attempt: at most one try, and the
// already-committed appointment stays valid whatever happens here.
type Orchestrator struct {
	syncer Syncer
	repo   Repository
}

func NewOrchestrator(syncer Syncer, repo Repository) *Orchestrator {
	return &Orchestrator{
		syncer: syncer,
		repo:   repo,
	}
}

// canSync reports whether the appointment carries the identifiers the
// external system needs. Without them, sync is silently skipped.
func canSync(appt *Appointment) bool {
	return appt.GHLContactID != nil && *appt.GHLContactID != "" &&
		appt.GHLLocationID != nil && *appt.GHLLocationID != "" &&
		appt.GHLCalendarID != nil && *appt.GHLCalendarID != ""
}

// Run attempts the external mirror for a freshly created appointment and
// persists the returned event id on success. Failures are reported to the
// caller and logged, never propagated as a rollback.
func (o *Orchestrator) Run(ctx context.Context, appt *Appointment) SyncResult {
	if o.syncer == nil || !canSync(appt) {
		return SyncResult{Status: SyncSkipped}
	}

	externalID, err := o.syncer.SyncAppointment(ctx, appt)
	if err != nil {
		log.Printf("sync failed for appointment %s: %v", appt.ID, err)
		return SyncResult{Status: SyncFailed, Err: err}
	}

	if err := o.repo.SetExternalEventID(ctx, appt.ID, externalID); err != nil {
		log.Printf("persist external event id %s for appointment %s: %v", externalID, appt.ID, err)
		return SyncResult{Status: SyncFailed, ExternalID: externalID, Err: err}
	}

	appt.ExternalEventID = &externalID
	return SyncResult{Status: SyncOK, ExternalID: externalID}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
