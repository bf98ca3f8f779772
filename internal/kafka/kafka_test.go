package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBookingEvent(t *testing.T) {
	event := BookingEvent{
		Type:        EventBookingCancelled,
		BookingID:   "BK002",
		UserID:      "user123",
		AmountCents: 28000,
		OccurredAt:  time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(event)
	require.NoError(t, err)

	got, err := DecodeBookingEvent(kafka.Message{Value: data})
	require.NoError(t, err)
	assert.Equal(t, event, got)

	_, err = DecodeBookingEvent(kafka.Message{Value: []byte("{"), Offset: 7})
	assert.ErrorContains(t, err, "offset 7")
}

func TestNewProducer(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, nil)
	require.NotNil(t, p)
	assert.NotNil(t, p.logger)
	assert.NoError(t, p.Close())
}

func TestProducer_CheckConnectionWithoutBrokers(t *testing.T) {
	p := NewProducer(nil, nil)
	assert.Error(t, p.CheckConnection(context.Background()))
}

func TestConsumer_CloseNil(t *testing.T) {
	var c *Consumer
	assert.NoError(t, c.Close())
}
