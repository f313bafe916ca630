package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Handlers and the worker enrich the context once per event so every log line
// downstream carries the delivery, repository and issue it belongs to.
type LogFields struct {
	EventID     *int64  // Snowflake ID assigned when the webhook was mapped
	DeliveryID  *string // X-GitHub-Delivery header
	IssueID     *int64  // GitHub issue ID (stable record key)
	IssueNumber *int    // Issue number within the repository
	Repository  *string // owner/name
	EventType   *string // Survey event kind (e.g. "survey_edited")
	MessageID   *string // Redis stream message ID
	Component   string  // Component name, e.g. "survey.service"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.EventID != nil {
		result.EventID = new.EventID
	}
	if new.DeliveryID != nil {
		result.DeliveryID = new.DeliveryID
	}
	if new.IssueID != nil {
		result.IssueID = new.IssueID
	}
	if new.IssueNumber != nil {
		result.IssueNumber = new.IssueNumber
	}
	if new.Repository != nil {
		result.Repository = new.Repository
	}
	if new.EventType != nil {
		result.EventType = new.EventType
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{IssueID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
