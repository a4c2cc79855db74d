package pubsub

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/config"

	ps "cloud.google.com/go/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublisherInvalidProject(t *testing.T) {
	cfg := &config.Config{GCPProjectID: ""}
	_, err := NewPublisher(context.Background(), cfg)
	assert.Error(t, err, "expected error when project ID is empty")
}

func TestPublishWithEmulator(t *testing.T) {
	if os.Getenv("PUBSUB_EMULATOR_HOST") == "" {
		t.Skip("PUBSUB_EMULATOR_HOST is not set, skip emulator integration test")
	}

	ctx := context.Background()
	pub, err := NewPublisher(ctx, &config.Config{GCPProjectID: "test-project"})
	require.NoError(t, err)
	defer pub.Close()

	topicName := "subscription-reviews-test"
	topic, err := pub.client.CreateTopic(ctx, topicName)
	require.NoError(t, err)
	sub, err := pub.client.CreateSubscription(ctx, "subscription-reviews-test-sub", ps.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	report := []byte(`{"downgraded":["u1"],"needs_manual_review":[]}`)
	msgID, err := pub.Publish(ctx, topicName, report)
	require.NoError(t, err)
	assert.NotEmpty(t, msgID)

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	received := make(chan *ps.Message, 1)
	go func() {
		_ = sub.Receive(recvCtx, func(ctx context.Context, m *ps.Message) {
			m.Ack()
			received <- m
			cancel()
		})
	}()

	select {
	case m := <-received:
		assert.Equal(t, report, m.Data)
		assert.Equal(t, "subscription-reconciler", m.Attributes["source"])
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message from emulator subscription")
	}
}
