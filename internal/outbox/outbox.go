// Package outbox persists change events alongside writes and delivers them to Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"example.com/performance/internal/events"
)

// Kafka header names set on every delivered record.
const (
	HeaderEventType     = "event_type"
	HeaderSchemaSubject = "schema_subject"
)

// EventMetadata describes how to route and frame an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
	Schema        string
}

var catalog = map[string]EventMetadata{
	events.TypeResultRecorded:  {Topic: events.Topic, SchemaSubject: events.Topic + "-result-changed", Schema: resultChangedSchema},
	events.TypeResultUpdated:   {Topic: events.Topic, SchemaSubject: events.Topic + "-result-changed", Schema: resultChangedSchema},
	events.TypeResultDeleted:   {Topic: events.Topic, SchemaSubject: events.Topic + "-result-changed", Schema: resultChangedSchema},
	events.TypeActivityRenamed: {Topic: events.Topic, SchemaSubject: events.Topic + "-activity-renamed", Schema: activityRenamedSchema},
	events.TypeActivitiesSet:   {Topic: events.Topic, SchemaSubject: events.Topic + "-activities-configured", Schema: activitiesConfiguredSchema},
	events.TypeRosterChanged:   {Topic: events.Topic, SchemaSubject: events.Topic + "-roster-changed", Schema: rosterChangedSchema},
}

// Lookup returns routing metadata for eventType.
func Lookup(eventType string) (EventMetadata, bool) {
	meta, ok := catalog[eventType]
	return meta, ok
}

// Event is a pending outbox row before insertion.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	PartitionKey  string
	Payload       any
}

// Enqueue records evt inside tx so it commits or rolls back with the write
// that produced it.
func Enqueue(ctx context.Context, tx pgx.Tx, evt Event) error {
	meta, ok := Lookup(evt.EventType)
	if !ok {
		return fmt.Errorf("unknown event type: %s", evt.EventType)
	}
	body, err := json.Marshal(evt.Payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		evt.AggregateType,
		evt.AggregateID,
		evt.EventType,
		meta.Topic,
		meta.SchemaSubject,
		evt.PartitionKey,
		body,
		fmt.Sprintf("%s:%s", evt.AggregateID, evt.EventType),
	)
	return err
}
