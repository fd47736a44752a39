package services

import (
	"strings"
)

type TopicServiceMethods interface {
	ListTopics() []Topic
	IsValid(topic string) bool
}

// Topic is a selectable report topic.
type Topic struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

type topicService struct {
	topics []string
}

func NewTopicService(topics []string) TopicServiceMethods {
	return &topicService{topics: topics}
}

func (t *topicService) ListTopics() []Topic {
	list := make([]Topic, 0, len(t.topics))
	for _, name := range t.topics {
		list = append(list, Topic{Name: name, Label: label(name)})
	}
	return list
}

func (t *topicService) IsValid(topic string) bool {
	for _, name := range t.topics {
		if name == topic {
			return true
		}
	}
	return false
}

func label(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
