// Package activity is the fire-and-forget boundary to the excluded
// activity-log service. Recording never fails the originating request.
package activity

import (
	"context"
	"log/slog"
)

type Event struct {
	ActorID    string
	ActorName  string
	Action     string
	TargetType string
	TargetID   string
	TargetName string
	Details    string
}

type Recorder interface {
	Record(ctx context.Context, e Event)
}

// LogRecorder writes activity events to the application log. The real
// collaborator is swapped in at wiring time.
type LogRecorder struct {
	Log *slog.Logger
}

func (r *LogRecorder) Record(_ context.Context, e Event) {
	r.Log.Info("activity",
		slog.String("action", e.Action),
		slog.String("actor", e.ActorID),
		slog.String("targetType", e.TargetType),
		slog.String("targetId", e.TargetID),
		slog.String("details", e.Details),
	)
}

// Noop drops events; used in tests.
type Noop struct{}

func (Noop) Record(context.Context, Event) {}
