package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Black-And-White-Club/tourney-settlement/app/events"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/nats-io/nats.go/jetstream"
)

// StreamName is the JetStream stream holding every domain event.
const StreamName = "settlement"

// InitializeStreams creates or extends the event stream during startup.
func InitializeStreams(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) error {
	cfg := jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: events.Subjects(),
	}

	_, err := js.Stream(ctx, StreamName)
	switch {
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := js.CreateStream(ctx, cfg); err != nil {
			logger.Error("Failed to create JetStream stream", attr.String("stream", StreamName), attr.Error(err))
			return fmt.Errorf("failed to create stream: %w", err)
		}
		logger.Info("Created JetStream stream", attr.String("stream", StreamName))
	case err != nil:
		return fmt.Errorf("failed to check stream: %w", err)
	default:
		if _, err := js.UpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("failed to update stream subjects: %w", err)
		}
	}
	return nil
}
