package audit

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "audit_events"

// MongoSink stores each event as a document in the audit_events collection.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type eventDocument struct {
	Action   string     `bson:"action"`
	Category string     `bson:"category,omitempty"`
	Plate    string     `bson:"plate,omitempty"`
	Owner    string     `bson:"owner,omitempty"`
	Slot     int        `bson:"slot,omitempty"`
	Entry    *time.Time `bson:"entry,omitempty"`
	Exit     *time.Time `bson:"exit,omitempty"`
	Fee      float64    `bson:"fee,omitempty"`
	Active   int        `bson:"active,omitempty"`
	Capacity int        `bson:"capacity,omitempty"`
	Visits   int        `bson:"visits,omitempty"`
	Revenue  float64    `bson:"revenue,omitempty"`
	Recorded time.Time  `bson:"recorded_at"`
}

// NewMongoSink connects to uri and verifies the connection with a ping.
func NewMongoSink(ctx context.Context, uri, dbName string) (*MongoSink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoSink{
		client:     client,
		collection: client.Database(dbName).Collection(mongoCollection),
	}, nil
}

func (s *MongoSink) Record(ctx context.Context, event Event) error {
	if _, err := s.collection.InsertOne(ctx, toDocument(event)); err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func toDocument(event Event) eventDocument {
	doc := eventDocument{
		Action:   string(event.Action),
		Category: event.Category,
		Plate:    event.Plate,
		Owner:    event.Owner,
		Slot:     event.Slot,
		Fee:      event.Fee,
		Active:   event.Active,
		Capacity: event.Capacity,
		Visits:   event.Visits,
		Revenue:  event.Revenue,
		Recorded: event.At,
	}
	if !event.Entry.IsZero() {
		entry := event.Entry.UTC()
		doc.Entry = &entry
	}
	if !event.Exit.IsZero() {
		exit := event.Exit.UTC()
		doc.Exit = &exit
	}
	if doc.Recorded.IsZero() {
		doc.Recorded = time.Now().UTC()
	}
	return doc
}
