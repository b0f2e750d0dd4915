package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/performance/internal/events"
	"example.com/performance/internal/logging"
	"example.com/performance/internal/outbox"
)

func framed(schemaID int, body string) []byte {
	frame := make([]byte, 5+len(body))
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], body)
	return frame
}

func record(offset int64, eventType string, value []byte) kafka.Message {
	return kafka.Message{
		Topic:  events.Topic,
		Offset: offset,
		Key:    []byte("Jane Doe"),
		Value:  value,
		Time:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Headers: []kafka.Header{
			{Key: outbox.HeaderEventType, Value: []byte(eventType)},
			{Key: outbox.HeaderSchemaSubject, Value: []byte("result_events-result-changed")},
		},
	}
}

func TestProcessorDecodesAndCommits(t *testing.T) {
	reader := &stubReader{
		msgs:     []kafka.Message{record(12, events.TypeResultRecorded, framed(9, `{"result_id":"r1"}`))},
		errAfter: context.Canceled,
	}
	handler := &recordingHandler{}
	proc := NewProcessor(reader, handler, WithLogger(logging.Discard()))

	err := proc.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, handler.count)
	require.Equal(t, 1, reader.commitCount)

	got := handler.last
	require.Equal(t, events.TypeResultRecorded, got.EventType)
	require.Equal(t, 9, got.SchemaID)
	require.Equal(t, "Jane Doe", got.Key)
	require.Equal(t, int64(12), got.Offset)
	require.JSONEq(t, `{"result_id":"r1"}`, string(got.Payload))
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	missingHeader := record(2, events.TypeResultRecorded, framed(1, `{}`))
	missingHeader.Headers = nil

	reader := &stubReader{
		msgs: []kafka.Message{
			record(1, events.TypeResultRecorded, []byte(`{"raw":true}`)),
			missingHeader,
			record(3, events.TypeResultRecorded, framed(1, `not json`)),
		},
		errAfter: context.Canceled,
	}
	handler := &recordingHandler{}
	proc := NewProcessor(reader, handler, WithLogger(logging.Discard()))

	require.ErrorIs(t, proc.Run(context.Background()), context.Canceled)
	require.Zero(t, handler.count)
	require.Equal(t, 3, reader.commitCount)
}

func TestProcessorLeavesFailedMessagesUncommitted(t *testing.T) {
	reader := &stubReader{
		msgs:     []kafka.Message{record(1, events.TypeResultDeleted, framed(1, `{}`))},
		errAfter: context.Canceled,
	}
	handler := &recordingHandler{err: errors.New("store unavailable")}
	proc := NewProcessor(reader, handler, WithLogger(logging.Discard()))

	require.ErrorIs(t, proc.Run(context.Background()), context.Canceled)
	require.Equal(t, 1, handler.count)
	require.Zero(t, reader.commitCount)
}

type stubReader struct {
	msgs        []kafka.Message
	idx         int
	commitCount int
	errAfter    error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.idx >= len(r.msgs) {
		return kafka.Message{}, r.errAfter
	}
	msg := r.msgs[r.idx]
	r.idx++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCount++
	return nil
}

func (r *stubReader) Close() error { return nil }

type recordingHandler struct {
	count int
	last  Message
	err   error
}

var _ Handler = (*recordingHandler)(nil)

func (h *recordingHandler) Handle(_ context.Context, msg Message) error {
	h.count++
	h.last = msg
	return h.err
}
