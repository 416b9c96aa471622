package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubAcknowledger подсчитывает ack/reject вместо живого канала RabbitMQ.
type stubAcknowledger struct {
	mu      sync.Mutex
	acks    int
	rejects int
}

func (a *stubAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *stubAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	return nil
}

func (a *stubAcknowledger) Reject(tag uint64, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejects++
	return nil
}

func (a *stubAcknowledger) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acks, a.rejects
}

func taskDelivery(t *testing.T, ack amqp.Acknowledger) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(GenerationTaskPayload{
		TaskID:  uuid.New(),
		NovelID: uuid.New(),
		UserID:  uuid.New(),
		Prompt:  "история о лисе",
	})
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body}
}

func waitDone(t *testing.T, c *TaskConsumer) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("воркеры не завершились")
	}
}

func TestConsumerWorkersRunInParallel(t *testing.T) {
	const concurrency = 3

	entered := make(chan struct{}, concurrency)
	release := make(chan struct{})
	handler := func(ctx context.Context, payload GenerationTaskPayload) error {
		entered <- struct{}{}
		<-release
		return nil
	}

	c := NewTaskConsumer(nil, "tasks", concurrency, handler, zap.NewNop())
	ack := &stubAcknowledger{}

	msgs := make(chan amqp.Delivery, concurrency)
	for i := 0; i < concurrency; i++ {
		msgs <- taskDelivery(t, ack)
	}
	close(msgs)

	c.runWorkers(context.Background(), msgs)

	// Все три задачи должны войти в обработчик одновременно, ни одна
	// не ждет завершения соседней.
	for i := 0; i < concurrency; i++ {
		select {
		case <-entered:
		case <-time.After(2 * time.Second):
			t.Fatalf("только %d из %d задач обрабатываются параллельно", i, concurrency)
		}
	}
	close(release)
	waitDone(t, c)

	acks, rejects := ack.counts()
	assert.Equal(t, concurrency, acks)
	assert.Equal(t, 0, rejects)
}

func TestConsumerRejectsMalformedPayload(t *testing.T) {
	handler := func(ctx context.Context, payload GenerationTaskPayload) error {
		t.Error("обработчик не должен вызываться для битого сообщения")
		return nil
	}

	c := NewTaskConsumer(nil, "tasks", 1, handler, zap.NewNop())
	ack := &stubAcknowledger{}

	msgs := make(chan amqp.Delivery, 1)
	msgs <- amqp.Delivery{Acknowledger: ack, Body: []byte("{не json")}
	close(msgs)

	c.runWorkers(context.Background(), msgs)
	waitDone(t, c)

	acks, rejects := ack.counts()
	assert.Equal(t, 0, acks)
	assert.Equal(t, 1, rejects)
}

func TestConsumerRejectsOnHandlerError(t *testing.T) {
	handler := func(ctx context.Context, payload GenerationTaskPayload) error {
		return errors.New("провайдер недоступен")
	}

	c := NewTaskConsumer(nil, "tasks", 1, handler, zap.NewNop())
	ack := &stubAcknowledger{}

	msgs := make(chan amqp.Delivery, 1)
	msgs <- taskDelivery(t, ack)
	close(msgs)

	c.runWorkers(context.Background(), msgs)
	waitDone(t, c)

	acks, rejects := ack.counts()
	assert.Equal(t, 0, acks)
	assert.Equal(t, 1, rejects)
}
