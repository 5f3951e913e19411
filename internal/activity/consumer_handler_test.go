package activity

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safelink/internal/models"
)

type memActivityRepo struct {
	rows []models.ActivityEntry
	err  error
}

func (r *memActivityRepo) CreateBatch(_ context.Context, entries []models.ActivityEntry) error {
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, entries...)
	return nil
}

func (r *memActivityRepo) ListForUser(_ context.Context, userID uint, limit int) ([]models.ActivityEntry, error) {
	var out []models.ActivityEntry
	for _, row := range r.rows {
		if row.UserID == userID && len(out) < limit {
			out = append(out, row)
		}
	}
	return out, nil
}

func kafkaMessage(t *testing.T, entry Entry) *confluentKafka.Message {
	t.Helper()
	payload, err := json.Marshal(entry)
	require.NoError(t, err)
	topic := "safelink-activity"
	return &confluentKafka.Message{
		TopicPartition: confluentKafka.TopicPartition{Topic: &topic},
		Value:          payload,
	}
}

func TestHandleFansOutPerViewer(t *testing.T) {
	repo := &memActivityRepo{}
	h := NewConsumerHandler(repo)

	entry := Entry{
		ActorID:   1,
		Type:      TypeSOSRaised,
		Message:   "alice raised an SOS alert",
		VisibleTo: []uint{2, 3, 4},
		At:        time.Now(),
	}
	require.NoError(t, h.Handle(context.Background(), kafkaMessage(t, entry)))

	require.Len(t, repo.rows, 3)
	for i, viewerID := range []uint{2, 3, 4} {
		assert.Equal(t, viewerID, repo.rows[i].UserID)
		assert.EqualValues(t, 1, repo.rows[i].ActorID)
		assert.Equal(t, TypeSOSRaised, repo.rows[i].Type)
	}
}

func TestHandleMalformedPayloadIsCommitted(t *testing.T) {
	repo := &memActivityRepo{}
	h := NewConsumerHandler(repo)

	topic := "safelink-activity"
	msg := &confluentKafka.Message{
		TopicPartition: confluentKafka.TopicPartition{Topic: &topic},
		Value:          []byte("not json"),
	}

	// nil means commit: a poison message must not wedge the partition.
	assert.NoError(t, h.Handle(context.Background(), msg))
	assert.Empty(t, repo.rows)
}

func TestHandleStorageFailureIsRetried(t *testing.T) {
	repo := &memActivityRepo{err: errors.New("connection refused")}
	h := NewConsumerHandler(repo)

	entry := Entry{ActorID: 1, Type: TypeSafeHome, VisibleTo: []uint{2}}
	assert.Error(t, h.Handle(context.Background(), kafkaMessage(t, entry)))
}
