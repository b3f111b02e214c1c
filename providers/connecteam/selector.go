package connecteam

import (
	"context"
	"time"

	"github.com/goliatone/go-hr-ingest/core"
)

type SyncState string

const (
	SyncStateSent      SyncState = "SENT"
	SyncStateScheduled SyncState = "SCHEDULED"
	SyncStateDelete    SyncState = "DELETE"
)

// SyncStateOf classifies a timesheet change: deleted activities are DELETE,
// activities that end in the future are SCHEDULED, everything else is SENT.
func SyncStateOf(record core.CanonicalRecord, now time.Time) SyncState {
	if deleted, ok := record.Fields["deleted"]; ok {
		if flag, _ := deleted.AsBool(); flag {
			return SyncStateDelete
		}
	}
	if end, ok := record.Fields["end_at"]; ok && !end.IsNull() {
		if at, _ := end.AsTime(); at.After(now) {
			return SyncStateScheduled
		}
	}
	return SyncStateSent
}

// SyncStateSelector routes timesheets by sync state. Scheduled shifts go to
// the scheduler only, deletes go to both targets, the rest to payroll.
// Other entities go to payroll.
type SyncStateSelector struct {
	PayrollTarget   string
	SchedulerTarget string
	Now             func() time.Time
}

func (s SyncStateSelector) SelectTargets(_ context.Context, record core.CanonicalRecord, _ core.WriteResult) []string {
	if record.EntityType != core.EntityTimesheet {
		return []string{s.PayrollTarget}
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}
	switch SyncStateOf(record, now) {
	case SyncStateScheduled:
		return []string{s.SchedulerTarget}
	case SyncStateDelete:
		return []string{s.PayrollTarget, s.SchedulerTarget}
	default:
		return []string{s.PayrollTarget}
	}
}
