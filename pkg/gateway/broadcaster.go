package gateway

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// EventBroadcaster pushes companion events (shortcut presses, commands,
// settings and overlay changes) to the websocket clients that asked for them.
// Every event gets the next sequence number whether or not anyone receives
// it, so clients can spot gaps.
type EventBroadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
	seq     atomic.Int64
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{
		clients: clients,
		logger:  logger,
	}
}

// Broadcast sends event with data to interested clients.
func (b *EventBroadcaster) Broadcast(event string, data any) int {
	return b.BroadcastMessage(EventMessage{Event: event, Data: data})
}

// BroadcastMessage fills in type, sequence and timestamp, sends msg and
// returns how many clients got it.
func (b *EventBroadcaster) BroadcastMessage(msg EventMessage) int {
	msg.Type = "event"
	if msg.Seq == 0 {
		msg.Seq = b.seq.Add(1)
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	log := b.logger.With().Str("event", msg.Event).Int64("seq", msg.Seq).Logger()

	recipients := b.clients.Subscribers(msg.Event)
	if len(recipients) == 0 {
		return 0
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event")
		return 0
	}

	sent := 0
	for _, client := range recipients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Warn().Err(err).Str("clientId", client.ID).Msg("Failed to push event")
			continue
		}
		sent++
	}

	log.Debug().Int("sent", sent).Int("failed", len(recipients)-sent).Msg("Event pushed")
	return sent
}
