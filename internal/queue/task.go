package queue

import "fmt"

type TaskType string

const (
	TaskTypeSurveyEvent TaskType = "survey_event"
)

// DeliveryKey is the redis key marking a webhook delivery as seen.
func DeliveryKey(deliveryID string) string {
	return fmt.Sprintf("survey:delivery:%s", deliveryID)
}
