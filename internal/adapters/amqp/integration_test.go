package amqp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumworks/tallyd/internal/domain/model"
	"github.com/quorumworks/tallyd/internal/testutil"
)

// testConfig builds an isolated topology so runs on a shared broker never
// cross-consume each other's messages.
func testConfig(url string) Config {
	cfg := DefaultConfig(url)
	cfg.Exchange = fmt.Sprintf("tallyd.test.%d", time.Now().UnixNano())
	cfg.DeadLetterExchange = cfg.Exchange + ".dlx"
	cfg.DeadLetterQueue = cfg.Exchange + ".dead"
	cfg.QueuePrefix = cfg.Exchange + "."
	return cfg
}

func cleanupTopology(t *testing.T, url string, cfg Config) {
	t.Helper()

	conn, err := amqp091.Dial(url)
	if err != nil {
		t.Logf("warning: cleanup dial failed: %v", err)
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		t.Logf("warning: cleanup channel failed: %v", err)
		return
	}
	defer ch.Close()

	for _, op := range model.AllOperationTypes() {
		_, _ = ch.QueueDelete(cfg.QueueName(op), false, false, false)
	}
	_, _ = ch.QueueDelete(cfg.DeadLetterQueue, false, false, false)
	_ = ch.ExchangeDelete(cfg.Exchange, false, false)
	_ = ch.ExchangeDelete(cfg.DeadLetterExchange, false, false)
}

func setupTestClient(t *testing.T) (*Client, Config) {
	t.Helper()

	url := testutil.SetupTestBrokerURL(t)
	cfg := testConfig(url)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	client, err := NewClient(cfg, logger)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		cleanupTopology(t, url, cfg)
	})
	return client, cfg
}

func TestClient_PublishAndConsume(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	msg := &model.ChunkMessage{
		JobID:      uuid.NewString(),
		ElectionID: "election-integration",
		Operation:  model.OperationTally,
		ChunkIndex: 3,
	}
	require.NoError(t, client.PublishChunk(ctx, msg))

	consumer, err := client.Consume(model.OperationTally, "it-worker", 1)
	require.NoError(t, err)
	defer consumer.Close()

	select {
	case delivery := <-consumer.Deliveries:
		got, decodeErr := model.DecodeChunkMessage(delivery.Body)
		require.NoError(t, decodeErr)
		assert.Equal(t, msg.JobID, got.JobID)
		assert.Equal(t, msg.ElectionID, got.ElectionID)
		assert.Equal(t, model.OperationTally, got.Operation)
		assert.Equal(t, 3, got.ChunkIndex)
		assert.Equal(t, "application/json", delivery.ContentType)
		assert.Equal(t, uint8(amqp091.Persistent), delivery.DeliveryMode)
		require.NoError(t, delivery.Ack(false))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestClient_RoutingPerOperation(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	tallyMsg := &model.ChunkMessage{
		JobID:      uuid.NewString(),
		ElectionID: "election-routing",
		Operation:  model.OperationTally,
		ChunkIndex: 0,
	}
	combineMsg := &model.ChunkMessage{
		JobID:      uuid.NewString(),
		ElectionID: "election-routing",
		Operation:  model.OperationCombine,
		ChunkIndex: 0,
	}
	require.NoError(t, client.PublishChunk(ctx, tallyMsg))
	require.NoError(t, client.PublishChunk(ctx, combineMsg))

	combineConsumer, err := client.Consume(model.OperationCombine, "it-combine", 1)
	require.NoError(t, err)
	defer combineConsumer.Close()

	// The combine queue sees only the combine message.
	select {
	case delivery := <-combineConsumer.Deliveries:
		got, decodeErr := model.DecodeChunkMessage(delivery.Body)
		require.NoError(t, decodeErr)
		assert.Equal(t, combineMsg.JobID, got.JobID)
		require.NoError(t, delivery.Ack(false))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for combine delivery")
	}

	select {
	case delivery, ok := <-combineConsumer.Deliveries:
		if ok {
			t.Fatalf("unexpected extra delivery on combine queue: %s", delivery.Body)
		}
	case <-time.After(300 * time.Millisecond):
	}
}

func TestClient_NackFlowsToDeadLetterQueue(t *testing.T) {
	client, cfg := setupTestClient(t)
	ctx := context.Background()

	msg := &model.ChunkMessage{
		JobID:      uuid.NewString(),
		ElectionID: "election-dlq",
		Operation:  model.OperationPartialDecryption,
		ChunkIndex: 1,
		GuardianID: "guardian-1",
		RetryCount: 5,
	}
	require.NoError(t, client.PublishChunk(ctx, msg))

	consumer, err := client.Consume(model.OperationPartialDecryption, "it-dlq-worker", 1)
	require.NoError(t, err)
	defer consumer.Close()

	select {
	case delivery := <-consumer.Deliveries:
		require.NoError(t, delivery.Nack(false, false))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	// The rejected message lands on the dead-letter queue.
	conn, err := amqp091.Dial(cfg.URL)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		dead, ok, getErr := ch.Get(cfg.DeadLetterQueue, true)
		require.NoError(t, getErr)
		if ok {
			got, decodeErr := model.DecodeChunkMessage(dead.Body)
			require.NoError(t, decodeErr)
			assert.Equal(t, msg.JobID, got.JobID)
			assert.Equal(t, 5, got.RetryCount)
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for dead-lettered message")
		}
		time.Sleep(100 * time.Millisecond)
	}
}
