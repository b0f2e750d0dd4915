package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/performance/internal/events"
)

func TestKafkaProducerWriters(t *testing.T) {
	p := NewKafkaProducer([]string{"kafka:9092"}, WithBatchTimeout(5*time.Millisecond), WithWriteTimeout(time.Second))

	require.Contains(t, p.writers, events.Topic, "the change-event writer exists before the first write")
	writer := p.writers[events.Topic]
	require.Equal(t, events.Topic, writer.Topic)
	require.Equal(t, 5*time.Millisecond, writer.BatchTimeout)
	require.Equal(t, time.Second, writer.WriteTimeout)
	require.Equal(t, kafka.RequireAll, writer.RequiredAcks)
	require.IsType(t, &kafka.Hash{}, writer.Balancer)

	same, err := p.writerForTopic(events.Topic)
	require.NoError(t, err)
	require.Same(t, writer, same)

	other, err := p.writerForTopic("audit_events")
	require.NoError(t, err)
	require.Equal(t, "audit_events", other.Topic)
	require.Len(t, p.writers, 2)

	require.NoError(t, p.Close())
	require.ErrorIs(t, p.WriteMessages(context.Background(), events.Topic, kafka.Message{Value: []byte("x")}), errProducerClosed)
	require.NoError(t, p.WriteMessages(context.Background(), events.Topic), "an empty batch is a no-op")
}

func TestKafkaProducerDefaults(t *testing.T) {
	p := NewKafkaProducer([]string{"kafka:9092"}, WithBatchTimeout(0))
	require.Equal(t, 50*time.Millisecond, p.batchTimeout)
	require.Equal(t, 10*time.Second, p.writeTimeout)
	require.NoError(t, p.Close())
}
