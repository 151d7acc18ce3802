package eventbus

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"soccer-game/internal/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	eventTypeParticipant = "participant_event"
)

// WSEvent is the document stored in the ws_events collection.
type WSEvent struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	OriginMachineID string             `bson:"originMachineId"`
	EventType       string             `bson:"eventType"`
	ParticipantID   string             `bson:"participantId"`
	Payload         []byte             `bson:"payload"`
	CreatedAt       time.Time          `bson:"createdAt"`
}

// DeliverFunc hands an encoded event to the participant's local sessions.
type DeliverFunc func(participantID string, payload []byte)

// EventBus publishes participant events to MongoDB and watches for events
// from other machines via Change Streams, so a participant connected to
// another instance still hears about its match.
type EventBus struct {
	machineID    string
	collection   *mongo.Collection
	deliverLocal DeliverFunc
	log          *zap.Logger
	cancelFunc   context.CancelFunc
	wg           sync.WaitGroup
	running      bool
	mu           sync.Mutex
}

func generateMachineID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// New creates an EventBus. If collection is nil, the EventBus runs in
// local-only mode (Publish is a no-op, no watcher runs).
func New(collection *mongo.Collection, deliverLocal DeliverFunc, l *zap.Logger) *EventBus {
	return &EventBus{
		machineID:    generateMachineID(),
		collection:   collection,
		deliverLocal: deliverLocal,
		log:          logger.OrNop(l).With(zap.String("component", "eventbus")),
	}
}

// MachineID returns this instance's unique identifier.
func (eb *EventBus) MachineID() string {
	return eb.machineID
}

// Enabled reports whether events leave this process.
func (eb *EventBus) Enabled() bool {
	return eb.collection != nil
}

// EnsureIndexes creates the TTL index on ws_events.createdAt.
// Idempotent, safe to call on every startup.
func (eb *EventBus) EnsureIndexes(ctx context.Context) error {
	if eb.collection == nil {
		return nil
	}
	_, err := eb.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: 1}},
		Options: options.Index().
			SetExpireAfterSeconds(60).
			SetName("ttl_createdAt_60s"),
	})
	return err
}

// Start begins the Change Stream watcher in a background goroutine.
func (eb *EventBus) Start() {
	if eb.collection == nil {
		eb.log.Info("no collection configured, running in local-only mode")
		return
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	eb.cancelFunc = cancel
	eb.running = true
	eb.wg.Add(1)

	go eb.watchLoop(ctx)
	eb.log.Info("started", zap.String("machineId", eb.machineID))
}

// Stop cancels the Change Stream watcher and waits for it to exit.
func (eb *EventBus) Stop() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if !eb.running {
		return
	}
	eb.running = false
	if eb.cancelFunc != nil {
		eb.cancelFunc()
	}
	eb.wg.Wait()
	eb.log.Info("stopped")
}

// Publish inserts a participant event into ws_events.
// Errors are logged, never returned (fire-and-forget).
func (eb *EventBus) Publish(participantID string, payload []byte) {
	if eb.collection == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	doc := WSEvent{
		OriginMachineID: eb.machineID,
		EventType:       eventTypeParticipant,
		ParticipantID:   participantID,
		Payload:         payload,
		CreatedAt:       time.Now(),
	}
	if _, err := eb.collection.InsertOne(ctx, doc); err != nil {
		eb.log.Warn("failed to publish event", zap.String("participantId", participantID), zap.Error(err))
	}
}

// watchLoop runs the Change Stream in a reconnecting loop.
func (eb *EventBus) watchLoop(ctx context.Context) {
	defer eb.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}
		err := eb.watch(ctx)
		if ctx.Err() != nil {
			return // normal shutdown
		}
		eb.log.Warn("change stream error, reconnecting in 2s", zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (eb *EventBus) watch(ctx context.Context) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: "insert"},
		}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	cs, err := eb.collection.Watch(ctx, pipeline, opts)
	if err != nil {
		return err
	}
	defer cs.Close(ctx)

	for cs.Next(ctx) {
		var changeDoc struct {
			FullDocument WSEvent `bson:"fullDocument"`
		}
		if err := cs.Decode(&changeDoc); err != nil {
			eb.log.Warn("failed to decode change event", zap.Error(err))
			continue
		}
		eb.dispatch(changeDoc.FullDocument)
	}

	return cs.Err()
}

func (eb *EventBus) dispatch(event WSEvent) {
	// Skip events from this machine (already delivered locally)
	if event.OriginMachineID == eb.machineID {
		return
	}

	switch event.EventType {
	case eventTypeParticipant:
		if eb.deliverLocal != nil {
			eb.deliverLocal(event.ParticipantID, event.Payload)
		}
	default:
		eb.log.Warn("unknown event type", zap.String("eventType", event.EventType))
	}
}
