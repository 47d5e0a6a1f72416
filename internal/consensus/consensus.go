package consensus

import (
	"context"
	"fmt"
	"strings"
)

// Receipt acknowledges a message appended to a consensus topic.
// SequenceNumber is only unique within StreamID.
type Receipt struct {
	TopicID        string
	StreamID       string
	SequenceNumber int64
}

// Submitter appends messages to an append-only consensus log
type Submitter interface {
	SubmitMessage(ctx context.Context, topicID string, message []byte) (Receipt, error)
}

// TopicResolver maps a region code to its consensus topic
type TopicResolver interface {
	TopicForRegion(regionCode string) (string, bool)
}

// placeholderTopics are topic ids shipped in sample configs that must never receive messages
var placeholderTopics = map[string]struct{}{
	"":        {},
	"0.0.0":   {},
	"0.0.XXX": {},
}

// IsPlaceholderTopic reports whether topicID is unset or a sample value
func IsPlaceholderTopic(topicID string) bool {
	topicID = strings.TrimSpace(topicID)
	if _, ok := placeholderTopics[strings.ToUpper(topicID)]; ok {
		return true
	}
	return strings.HasPrefix(strings.ToLower(topicID), "placeholder")
}

// StaticTopicResolver resolves topics from a fixed region table
type StaticTopicResolver struct {
	topics       map[string]string
	defaultTopic string
}

// NewStaticTopicResolver creates a resolver. Region codes are matched case-insensitively.
func NewStaticTopicResolver(topics map[string]string, defaultTopic string) *StaticTopicResolver {
	normalized := make(map[string]string, len(topics))
	for region, topic := range topics {
		normalized[strings.ToUpper(strings.TrimSpace(region))] = strings.TrimSpace(topic)
	}
	return &StaticTopicResolver{
		topics:       normalized,
		defaultTopic: strings.TrimSpace(defaultTopic),
	}
}

// TopicForRegion returns the region's topic, then the default topic
func (r *StaticTopicResolver) TopicForRegion(regionCode string) (string, bool) {
	if topic, ok := r.topics[strings.ToUpper(strings.TrimSpace(regionCode))]; ok && topic != "" {
		return topic, true
	}
	if r.defaultTopic != "" {
		return r.defaultTopic, true
	}
	return "", false
}

// ParseTopicTable parses "REGION:topic,REGION:topic" into a region table
func ParseTopicTable(raw string) (map[string]string, error) {
	topics := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		region, topic, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(region) == "" || strings.TrimSpace(topic) == "" {
			return nil, fmt.Errorf("invalid topic entry %q, expected REGION:topic", entry)
		}
		topics[strings.TrimSpace(region)] = strings.TrimSpace(topic)
	}
	return topics, nil
}
