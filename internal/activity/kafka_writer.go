package activity

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"safelink/internal/config"
	"safelink/internal/kafka"
)

// kafkaWriter publishes activity entries to the activity topic. The
// consumer side persists them; losing an entry on a broker outage is
// acceptable, the feed is not a system of record.
type kafkaWriter struct {
	producer kafka.MessageProducer
	topic    string
}

// NewKafkaWriter creates a Writer that publishes to the configured
// activity topic.
func NewKafkaWriter(producer kafka.MessageProducer, cfg config.KafkaConfig) Writer {
	return &kafkaWriter{producer: producer, topic: cfg.ActivityTopic}
}

// Append publishes the entry. Errors are logged and swallowed.
func (w *kafkaWriter) Append(ctx context.Context, entry Entry) {
	if len(entry.VisibleTo) == 0 {
		return
	}
	if entry.At.IsZero() {
		entry.At = time.Now()
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		log.Printf("activity: failed to encode entry of type %s: %v", entry.Type, err)
		return
	}

	key := []byte(strconv.FormatUint(uint64(entry.ActorID), 10))
	if err := w.producer.SendMessage(ctx, w.topic, key, payload); err != nil {
		log.Printf("activity: failed to publish entry of type %s for actor %d: %v", entry.Type, entry.ActorID, err)
	}
}
