package history

import (
	"context"

	"farmetrics-backend/internal/domain"

	"github.com/rs/zerolog/log"
)

// Recorder receives farm change descriptors for the external audit trail.
// This core emits changes; persistence is the collaborator's concern.
type Recorder interface {
	Record(ctx context.Context, change domain.FarmChange) error
}

// LogRecorder writes change descriptors to the structured log. It is the
// default wiring until the audit-trail service consumes changes directly.
type LogRecorder struct{}

func (LogRecorder) Record(ctx context.Context, change domain.FarmChange) error {
	ev := log.Info().
		Str("farm_id", change.FarmID.String()).
		Str("change_type", change.ChangeType)
	if change.ChangedBy != nil {
		ev = ev.Str("changed_by", change.ChangedBy.String())
	}
	if change.Reason != "" {
		ev = ev.Str("reason", change.Reason)
	}
	ev.Msg("Farm change recorded")
	return nil
}
