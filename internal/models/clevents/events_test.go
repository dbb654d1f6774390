package clevents

import (
	"context"
	"qrcommerce/internal/models/clconfig"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	assert.IsType(t, LogPublisher{}, New(clconfig.KafkaConfig{}))
	assert.IsType(t, LogPublisher{}, New(clconfig.KafkaConfig{Enabled: true}))

	p := New(clconfig.KafkaConfig{Enabled: true, Brokers: []string{"localhost:9092"}, Topic: "qr-events"})
	kp, ok := p.(*KafkaPublisher)
	require.True(t, ok)
	assert.Equal(t, "qr-events", kp.writer.Topic)
	assert.NoError(t, kp.Close())
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(TypeScan, 7)
	_, err := uuid.Parse(e.ID)
	assert.NoError(t, err)
	assert.Equal(t, uint(7), e.QRCodeID)
	assert.False(t, e.OccurredAt.IsZero())
}

func TestMemoryPublisher(t *testing.T) {
	m := &MemoryPublisher{}
	require.NoError(t, m.Publish(context.Background(), NewEvent(TypeConversion, 1)))
	require.NoError(t, LogPublisher{}.Publish(context.Background(), NewEvent(TypeScan, 1)))

	events := m.Events()
	require.Len(t, events, 1)
	assert.Equal(t, TypeConversion, events[0].Type)
}
