package broker

import (
	"encoding/json"
	"testing"

	"marketplace-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeReviewChanged(t *testing.T) {
	event := models.ReviewChangedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeReviewChanged),
		ReviewID:  5,
		ProductID: 9,
		Action:    "updated",
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	decoded, ok, err := DecodeReviewChanged(kafka.Message{Value: payload})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(9), decoded.ProductID)
	assert.Equal(t, "updated", decoded.Action)
}

func TestDecodeReviewChangedSkipsOtherTypes(t *testing.T) {
	other := models.OrderCreatedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderCreated),
		OrderID:   1,
	}
	payload, err := json.Marshal(other)
	require.NoError(t, err)

	_, ok, err := DecodeReviewChanged(kafka.Message{Value: payload})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeReviewChangedBadPayload(t *testing.T) {
	_, _, err := DecodeReviewChanged(kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)
}
