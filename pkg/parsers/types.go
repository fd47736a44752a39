package parsers

// Headline is one article title as grouped by the report script.
type Headline struct {
	Title  string `json:"title" yaml:"title"`
	URL    string `json:"url" yaml:"url"`
	Source string `json:"source" yaml:"source"`
	Time   string `json:"time,omitempty" yaml:"time,omitempty"`
}

type ImageError struct {
	Source    string `json:"source" yaml:"source"`
	URL       string `json:"url" yaml:"url"`
	Error     string `json:"error" yaml:"error"`
	ErrorType string `json:"error_type" yaml:"error_type"`
}

// ArticleImage is either an extracted image or the reason extraction failed.
type ArticleImage struct {
	URL              string       `json:"url,omitempty" yaml:"url,omitempty"`
	Alt              string       `json:"alt,omitempty" yaml:"alt,omitempty"`
	SourceURL        string       `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	Error            string       `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorType        string       `json:"error_type,omitempty" yaml:"error_type,omitempty"`
	AttemptedSources []string     `json:"attempted_sources,omitempty" yaml:"attempted_sources,omitempty"`
	DetailedErrors   []ImageError `json:"detailed_errors,omitempty" yaml:"detailed_errors,omitempty"`
	TotalAttempts    int          `json:"total_attempts,omitempty" yaml:"total_attempts,omitempty"`
}

type TopicGroup struct {
	ID           int           `json:"id" yaml:"id"`
	TopicName    string        `json:"topic_name" yaml:"topic_name"`
	Headlines    []Headline    `json:"headlines" yaml:"headlines"`
	Count        int           `json:"count,omitempty" yaml:"count,omitempty"`
	SourcesCount int           `json:"sources_count,omitempty" yaml:"sources_count,omitempty"`
	Image        *ArticleImage `json:"image,omitempty" yaml:"image,omitempty"`
}

// AnalysisResult is the final JSON document the report script prints.
type AnalysisResult struct {
	Date           string       `json:"date" yaml:"date"`
	Topic          string       `json:"topic" yaml:"topic"`
	IsLastWeek     bool         `json:"is_last_week" yaml:"is_last_week"`
	TimePeriod     string       `json:"time_period,omitempty" yaml:"time_period,omitempty"`
	CommonTopics   []TopicGroup `json:"common_topics" yaml:"common_topics"`
	TotalGroups    int          `json:"total_groups" yaml:"total_groups"`
	TotalHeadlines int          `json:"total_headlines" yaml:"total_headlines"`
}

// GroupSize is the group's declared count, or its headline count when the
// script omitted it.
func (g TopicGroup) GroupSize() int {
	if g.Count > 0 {
		return g.Count
	}
	return len(g.Headlines)
}
