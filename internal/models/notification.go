package models

import "time"

// Notification reason codes. Notifications carry structured data only;
// presentation (wording, localization) belongs to the consuming UI.
const (
	NotificationStandardization = "standardization"
	NotificationStandardChange  = "standard_change"
)

// Notification is the structured payload published to subscribers (websocket
// feed, Redis pub/sub, webhooks) when a task's standard is fixed or replaced.
type Notification struct {
	Type               string          `json:"type"`
	TaskID             string          `json:"taskId"`
	SolutionID         string          `json:"solutionId"`
	PreviousSolutionID string          `json:"previousSolutionId,omitempty"`
	AffectedUsers      int             `json:"affectedUsers,omitempty"`
	OccurredAt         time.Time       `json:"occurredAt"`
	Snapshot           QualifyingStats `json:"snapshot"`
}
