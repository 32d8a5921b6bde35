package domain

// NotificationKind distinguishes job-store change events.
type NotificationKind string

const (
	NotifyInsert NotificationKind = "insert"
	NotifyUpdate NotificationKind = "update"
)

// JobNotification is one change event from the job store.
type JobNotification struct {
	Kind      NotificationKind `json:"kind"`
	JobID     int64            `json:"job_id"`
	ProjectID int64            `json:"project_id"`
	Status    JobStatus        `json:"status"`
}
