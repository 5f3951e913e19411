package activity

import (
	"context"
	"encoding/json"
	"log"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"safelink/internal/models"
	"safelink/internal/storage"
)

// ConsumerHandler turns published activity entries into feed rows, one
// per visible user.
type ConsumerHandler struct {
	repo storage.ActivityRepository
}

// NewConsumerHandler creates a handler bound to the activity repository.
func NewConsumerHandler(repo storage.ActivityRepository) *ConsumerHandler {
	return &ConsumerHandler{repo: repo}
}

// Handle processes one consumed message. A malformed payload is logged
// and committed (retrying cannot fix it); a storage failure is returned
// so the message is redelivered.
func (h *ConsumerHandler) Handle(ctx context.Context, msg *confluentKafka.Message) error {
	var entry Entry
	if err := json.Unmarshal(msg.Value, &entry); err != nil {
		log.Printf("activity: dropping malformed entry at offset %v: %v", msg.TopicPartition.Offset, err)
		return nil
	}

	rows := make([]models.ActivityEntry, 0, len(entry.VisibleTo))
	for _, viewerID := range entry.VisibleTo {
		rows = append(rows, models.ActivityEntry{
			UserID:  viewerID,
			ActorID: entry.ActorID,
			Type:    entry.Type,
			Message: entry.Message,
		})
	}

	if err := h.repo.CreateBatch(ctx, rows); err != nil {
		return err
	}
	return nil
}
