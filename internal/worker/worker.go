package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"basegraph.app/copilot-survey/common/logger"
	"basegraph.app/copilot-survey/internal/queue"
	"basegraph.app/copilot-survey/internal/service"
	"basegraph.app/copilot-survey/internal/survey"
)

type Config struct {
	MaxAttempts int
	// NewBackOff paces reads after a stream error. Defaults to an unbounded exponential backoff.
	NewBackOff func() backoff.BackOff
}

type Worker struct {
	consumer Consumer
	handler  EventHandler
	cfg      Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, handler EventHandler, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.NewBackOff == nil {
		cfg.NewBackOff = defaultBackOff
	}
	return &Worker{
		consumer:  consumer,
		handler:   handler,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "survey.worker",
	})
	slog.InfoContext(ctx, "worker started", "max_attempts", w.cfg.MaxAttempts)

	bo := w.cfg.NewBackOff()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
		}

		if err := w.processOneBatch(ctx); err != nil {
			wait := bo.NextBackOff()
			if wait == backoff.Stop {
				return fmt.Errorf("giving up after read errors: %w", err)
			}
			slog.ErrorContext(ctx, "batch processing error", "error", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.stopCh:
				slog.InfoContext(ctx, "worker stopping")
				return nil
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		w.Process(ctx, msg)
	}
	return nil
}

// Process handles one message and settles it: ack on success, DLQ or requeue on failure.
// Exported so the reclaimer settles reclaimed messages the same way.
func (w *Worker) Process(ctx context.Context, msg queue.Message) {
	msgID := msg.ID
	fields := logger.LogFields{MessageID: &msgID}
	if msg.Event != nil {
		fields.EventID = &msg.Event.ID
		fields.EventType = logger.Ptr(string(msg.Event.Kind))
		fields.Repository = logger.Ptr(msg.Event.Repo.String())
	}
	ctx = logger.WithLogFields(ctx, fields)

	span := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_message")
	defer span.End()
	ctx = span.Context()

	if err := w.handleSafe(ctx, msg); err != nil {
		span.RecordError(err)
		w.handleFailedMessage(ctx, msg, err)
		return
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// the reclaimer will redeliver it; field updates converge but a
		// survey_commented event appends its comment a second time
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}
}

func (w *Worker) handleSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	slog.InfoContext(ctx, "processing message", "attempt", msg.Attempt)
	if msg.Event == nil {
		return fmt.Errorf("message %s has no event", msg.ID)
	}
	return w.handler.Handle(ctx, msg.Event)
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	switch {
	case errors.Is(err, service.ErrUnsupportedEvent):
		slog.WarnContext(ctx, "dropping unsupported event", "error", err)
		if ackErr := w.consumer.Ack(ctx, msg); ackErr != nil {
			slog.ErrorContext(ctx, "failed to ACK message", "error", ackErr)
		}
		return
	case errors.Is(err, survey.ErrMalformedSurvey), msg.Attempt >= w.cfg.MaxAttempts:
		slog.ErrorContext(ctx, "sending message to DLQ",
			"error", err,
			"attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"error", err,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
