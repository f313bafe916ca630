package worker

import (
	"context"

	"basegraph.app/copilot-survey/internal/model"
	"basegraph.app/copilot-survey/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// EventHandler is satisfied by service.SurveyService.
type EventHandler interface {
	Handle(ctx context.Context, event *model.SurveyEvent) error
}
