package types

import "time"

// JobStatus is the lifecycle state of a download job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "Running"
	JobStatusCompleted JobStatus = "Completed"
	JobStatusFailed    JobStatus = "Failed"
	JobStatusStopped   JobStatus = "Stopped"
)

// IsTerminal reports whether no further transition is allowed from this status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusStopped:
		return true
	case JobStatusRunning:
		return false
	default:
		return false
	}
}

// JobInfo is the externally visible record of one download job.
// Values are copied, never shared; use WithStatus to derive a transitioned record.
type JobInfo struct {
	JobID        string     `json:"jobId"`
	Symbol       string     `json:"symbol"`
	SecurityType string     `json:"securityType,omitempty"`
	Resolution   string     `json:"resolution"`
	Status       JobStatus  `json:"status"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// WithStatus returns a copy of the job moved to status, ended at endTime.
func (j JobInfo) WithStatus(status JobStatus, endTime time.Time, errMessage string) JobInfo {
	end := endTime
	next := j
	next.Status = status
	next.EndTime = &end
	next.Error = errMessage

	return next
}
