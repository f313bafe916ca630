package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"basegraph.app/copilot-survey/internal/model"
)

type EventMessage struct {
	Event   *model.SurveyEvent
	TraceID string
	Attempt int
}

type Producer interface {
	Enqueue(ctx context.Context, msg EventMessage) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, msg EventMessage) error {
	if msg.Event == nil {
		return errors.New("enqueue event: nil event")
	}

	attempt := msg.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	payload, err := json.Marshal(msg.Event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	fields := messageValues(Message{
		TaskType: TaskTypeSurveyEvent,
		Event:    msg.Event,
		Payload:  string(payload),
		TraceID:  msg.TraceID,
	}, attempt)

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue event: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued survey event",
		"event_id", msg.Event.ID,
		"kind", msg.Event.Kind,
		"repository", msg.Event.Repo.String(),
		"attempt", attempt)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
