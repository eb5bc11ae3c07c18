package eventbusintegrationtests

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Black-And-White-Club/tourney-settlement/app/eventbus"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/Black-And-White-Club/tourney-settlement/integration_tests/containers"
	"github.com/Black-And-White-Club/tourney-settlement/integration_tests/testutils"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payoutCompleted struct {
	PayoutID  string `json:"payout_id"`
	NetAmount int64  `json:"net_amount"`
}

func TestNATSEventBus_PublishSubscribe(t *testing.T) {
	testutils.SkipIfShort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	natsContainer, natsURL, err := containers.SetupNatsContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = natsContainer.Terminate(context.Background()) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus, err := eventbus.NewNATS(ctx, natsURL, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	messages, err := bus.Subscribe(ctx, "payout.completed")
	require.NoError(t, err)

	pubCtx := attr.WithCorrelationID(ctx, "corr-42")
	require.NoError(t, bus.Publish(pubCtx, "payout.completed", payoutCompleted{PayoutID: "p-1", NetAmount: 90000}))

	select {
	case msg := <-messages:
		require.NotNil(t, msg)
		msg.Ack()
		var got payoutCompleted
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, payoutCompleted{PayoutID: "p-1", NetAmount: 90000}, got)
		assert.Equal(t, "corr-42", middleware.MessageCorrelationID(msg))
	case <-ctx.Done():
		t.Fatal("timed out waiting for payout.completed")
	}
}

func TestNATSEventBus_RejectsUnreachableServer(t *testing.T) {
	testutils.SkipIfShort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := eventbus.NewNATS(ctx, "nats://127.0.0.1:1", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
