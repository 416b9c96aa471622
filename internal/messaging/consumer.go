package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// TaskHandler обрабатывает одну задачу генерации. Возвращённая ошибка
// отправляет сообщение в DLQ (reject без requeue).
type TaskHandler func(ctx context.Context, payload GenerationTaskPayload) error

// TaskConsumer читает задачи генерации из RabbitMQ и передаёт их обработчику.
type TaskConsumer struct {
	conn        *amqp.Connection
	queueName   string
	concurrency int
	handler     TaskHandler
	logger      *zap.Logger
	channel     *amqp.Channel
	done        chan struct{}
}

func NewTaskConsumer(conn *amqp.Connection, queueName string, concurrency int, handler TaskHandler, logger *zap.Logger) *TaskConsumer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &TaskConsumer{
		conn:        conn,
		queueName:   queueName,
		concurrency: concurrency,
		handler:     handler,
		logger:      logger.Named("TaskConsumer"),
		done:        make(chan struct{}),
	}
}

// declareTopology объявляет DLX, DLQ и основную очередь задач.
// Сообщения, отклонённые обработчиком, уходят в DLQ и не теряются.
func (c *TaskConsumer) declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(TaskDLXName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(TaskDLQName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}
	if err := ch.QueueBind(TaskDLQName, TaskDLQKey, TaskDLXName, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	args := amqp.Table{
		"x-queue-mode":              "lazy",
		"x-dead-letter-exchange":    TaskDLXName,
		"x-dead-letter-routing-key": TaskDLQKey,
	}
	if _, err := ch.QueueDeclare(c.queueName, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare task queue '%s': %w", c.queueName, err)
	}
	return nil
}

// Start объявляет топологию и запускает воркеры-горутины.
func (c *TaskConsumer) Start(ctx context.Context) error {
	var err error
	c.channel, err = c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := c.declareTopology(c.channel); err != nil {
		_ = c.channel.Close()
		return err
	}

	// Prefetch ограничен числом воркеров: незакоммиченные задачи не копятся
	if err := c.channel.Qos(c.concurrency, 0, false); err != nil {
		_ = c.channel.Close()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.queueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack: подтверждаем вручную после обработки
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = c.channel.Close()
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Task consumer started",
		zap.String("queue", c.queueName),
		zap.Int("concurrency", c.concurrency),
	)

	c.runWorkers(ctx, msgs)

	return nil
}

// runWorkers запускает пул воркеров над каналом доставок: задачи генерации
// идут минутами, поэтому обрабатываются параллельно, по воркеру на каждый
// prefetch-слот.
func (c *TaskConsumer) runWorkers(ctx context.Context, msgs <-chan amqp.Delivery) {
	var wg sync.WaitGroup
	for i := 0; i < c.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("Panic recovered in task consumer worker",
						zap.Int("workerID", workerID),
						zap.Any("panic", r),
					)
				}
				wg.Done()
			}()

			for {
				select {
				case msg, ok := <-msgs:
					if !ok {
						c.logger.Info("Task consumer channel closed, worker exiting",
							zap.Int("workerID", workerID))
						return
					}
					c.handleDelivery(ctx, msg)
				case <-ctx.Done():
					c.logger.Info("Context cancelled, worker exiting",
						zap.Int("workerID", workerID))
					return
				}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(c.done)
	}()
}

func (c *TaskConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) {
	var payload GenerationTaskPayload
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.logger.Error("Failed to unmarshal generation task, rejecting to DLQ",
			zap.Error(err),
			zap.ByteString("body", msg.Body),
		)
		_ = msg.Reject(false)
		return
	}

	logFields := []zap.Field{
		zap.String("taskID", payload.TaskID.String()),
		zap.String("novelID", payload.NovelID.String()),
	}
	c.logger.Info("Processing generation task", logFields...)

	if err := c.handler(ctx, payload); err != nil {
		c.logger.Error("Task handler failed, rejecting to DLQ", append(logFields, zap.Error(err))...)
		_ = msg.Reject(false)
		return
	}

	if err := msg.Ack(false); err != nil {
		c.logger.Error("Failed to ack message", append(logFields, zap.Error(err))...)
		return
	}
	c.logger.Info("Generation task processed", logFields...)
}

// Stop останавливает консьюмер и дожидается завершения горутины.
func (c *TaskConsumer) Stop() error {
	c.logger.Info("Stopping task consumer...")
	if c.channel != nil {
		if err := c.channel.Cancel("", false); err != nil {
			c.logger.Warn("Error cancelling consumer", zap.Error(err))
		}
	}

	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		c.logger.Warn("Timeout waiting for task consumer goroutine to stop")
	}

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Warn("Error closing consumer channel", zap.Error(err))
		}
	}
	c.logger.Info("Task consumer stopped")
	return nil
}
