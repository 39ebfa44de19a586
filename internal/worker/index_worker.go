package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"healthshield-ai/internal/model"
	"healthshield-ai/internal/platform/logger"
	"healthshield-ai/internal/platform/rabbitmq"
)

// IndexWorker consumes index jobs from RabbitMQ. Failed jobs are dropped,
// indexing is best effort.
type IndexWorker struct {
	log       *logger.Logger
	conn      *amqp.Connection
	handler   IndexHandler
	queueName string
	timeout   time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIndexWorker(log *logger.Logger, conn *amqp.Connection, handler IndexHandler, queueName string, timeout time.Duration) *IndexWorker {
	return &IndexWorker{
		log:       log.With("worker", "IndexWorker", "queue", queueName),
		conn:      conn,
		handler:   handler,
		queueName: queueName,
		timeout:   timeout,
	}
}

func (w *IndexWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if _, err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := w.handle(workerCtx, d.Body); err != nil {
					w.log.Warn("index job failed", "error", err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	w.log.Info("index worker started")
	return nil
}

func (w *IndexWorker) handle(ctx context.Context, body []byte) error {
	var job model.IndexJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("decode index job failed: %w", err)
	}
	return runJob(ctx, w.handler, job, w.timeout)
}

func (w *IndexWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func runJob(ctx context.Context, handler IndexHandler, job model.IndexJob, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	_, err := handler.IndexDocument(ctx, job)
	return err
}
