package kafkax

import (
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
)

// EventMeta identifies a consumed message for dedupe and logging.
type EventMeta struct {
	EventID   string
	EventType string
}

// ExtractEventMeta pulls the event identity from message headers. Messages
// without an event_id header fall back to the message key, and finally to a
// topic/partition/offset triple, which is stable across redeliveries and so
// still safe to use as an inbox dedupe key.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{
		EventID:   HeaderValue(msg, "event_id"),
		EventType: HeaderValue(msg, "event_type"),
	}
	if meta.EventID == "" && len(msg.Key) > 0 {
		meta.EventID = string(msg.Key)
	}
	if meta.EventID == "" {
		meta.EventID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	if meta.EventType == "" {
		meta.EventType = msg.Topic
	}
	return meta
}

// HeaderValue returns the first header with the given key, or "".
func HeaderValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// SplitBrokers parses a comma-separated broker list, dropping blanks.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}
