package dto

// WebhookResponse is returned for every webhook delivery.
type WebhookResponse struct {
	Status  string `json:"status"`
	EventID int64  `json:"event_id,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

const (
	StatusOK        = "ok"
	StatusQueued    = "queued"
	StatusIgnored   = "ignored"
	StatusDuplicate = "duplicate"
)
