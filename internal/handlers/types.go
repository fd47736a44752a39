package handlers

import (
	"brutalist/pkg/parsers"
	"brutalist/pkg/runner"
)

// ReportRequest starts a report. A missing topic means all topics.
type ReportRequest struct {
	Topic    *string `json:"topic"`
	LastWeek bool    `json:"last_week"`
}

func (r ReportRequest) Params() runner.Params {
	return runner.Params{Topic: r.Topic, LastWeek: r.LastWeek}
}

type ReportResponse struct {
	ReportID string `json:"report_id"`
}

type RunResponse struct {
	ReportID string                  `json:"report_id"`
	Output   string                  `json:"output"`
	Result   *parsers.AnalysisResult `json:"result"`
}

type ErrorResponse struct {
	Error  string   `json:"error"`
	Kind   string   `json:"kind,omitempty"`
	Output string   `json:"output,omitempty"`
	Topics []string `json:"topics,omitempty"`
}
