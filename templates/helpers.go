// Package templates renders the server's HTML pages as templ components.
package templates

func topicLabel(topic string, hasTopic bool) string {
	if !hasTopic || topic == "" {
		return "all"
	}
	return topic
}

func periodLabel(lastWeek bool) string {
	if lastWeek {
		return "last week"
	}
	return "today"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
