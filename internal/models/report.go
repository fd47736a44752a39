package models

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusImported  = "imported"
)

// Report is one run of the report script, or a result imported from the
// archive directory.
type Report struct {
	UUID           string `gorm:"primaryKey;type:varchar(36)" json:"uuid"`
	Topic          string `json:"topic"`
	HasTopic       bool   `json:"has_topic"`
	LastWeek       bool   `json:"last_week"`
	Status         string `gorm:"index" json:"status"`
	Lines          int    `json:"lines"`
	Processed      int    `json:"processed"`
	Total          int    `json:"total"`
	Message        string `json:"message"`
	ErrorKind      string `json:"error_kind,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	Output         string `gorm:"type:text" json:"output,omitempty"`
	ResultJSON     string `gorm:"type:text" json:"result,omitempty"`
	TotalGroups    int    `json:"total_groups"`
	TotalHeadlines int    `json:"total_headlines"`
	ArchivePath    string `json:"archive_path,omitempty"`
	CreatedAt      int64  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      int64  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsFinished reports whether the report reached a terminal status.
func (r *Report) IsFinished() bool {
	switch r.Status {
	case StatusCompleted, StatusFailed, StatusImported:
		return true
	}
	return false
}
