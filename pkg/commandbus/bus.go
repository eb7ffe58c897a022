package commandbus

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/observerai/companion/internal/metrics"
	"github.com/rs/zerolog"
)

// MessageTypeCommand is the type tag of every CommandMessage.
const MessageTypeCommand = "command"

// ActionToggle is the only action shortcuts emit today.
const ActionToggle = "toggle"

// ErrInvalidCommand is returned for an empty agent id or action.
var ErrInvalidCommand = errors.New("invalid command")

// CommandMessage is what live subscribers receive.
type CommandMessage struct {
	Type    string `json:"type"`
	AgentID string `json:"agentId"`
	Action  string `json:"action"`
}

// Source labels where a command came from.
type Source string

const (
	SourceShortcut Source = "shortcut"
	SourceHTTP     Source = "http"
	SourceRPC      Source = "rpc"
	SourceDirect   Source = "direct"
)

// Options configures a Bus.
type Options struct {
	// Backlog is the per-subscriber buffer size. Defaults to DefaultBacklog.
	Backlog int
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// Bus delivers agent commands through a mailbox and a live stream.
type Bus struct {
	// submitMu keeps mailbox order and stream order identical per agent.
	submitMu sync.Mutex

	mailbox *Mailbox[string, string]
	stream  *Multicast[CommandMessage]
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a command bus.
func New(opts Options) *Bus {
	stream := NewMulticast[CommandMessage](opts.Backlog)
	m := opts.Metrics
	stream.OnMissed = m.RecordMissed
	stream.OnSubscribersChanged = m.SetSubscribers

	return &Bus{
		mailbox: NewMailbox[string, string](),
		stream:  stream,
		metrics: m,
		logger:  opts.Logger.With().Str("component", "command-bus").Logger(),
	}
}

// Submit records action as the pending command for agentID and publishes it
// to all live subscribers.
func (b *Bus) Submit(agentID, action string) error {
	return b.SubmitFrom(SourceDirect, agentID, action)
}

// SubmitFrom is Submit with an explicit source label.
func (b *Bus) SubmitFrom(source Source, agentID, action string) error {
	if strings.TrimSpace(agentID) == "" {
		return fmt.Errorf("%w: agent id is required", ErrInvalidCommand)
	}
	if strings.TrimSpace(action) == "" {
		return fmt.Errorf("%w: action is required", ErrInvalidCommand)
	}

	msg := CommandMessage{Type: MessageTypeCommand, AgentID: agentID, Action: action}

	b.submitMu.Lock()
	replaced := b.mailbox.Put(agentID, action)
	receivers := b.stream.Publish(msg)
	b.submitMu.Unlock()

	b.metrics.RecordCommand(string(source))
	b.metrics.SetPending(b.mailbox.Len())

	b.logger.Info().
		Str("agent_id", agentID).
		Str("action", action).
		Str("source", string(source)).
		Int("receivers", receivers).
		Bool("replaced", replaced).
		Msg("Command submitted")
	return nil
}

// From returns a submitter that labels every command with source.
func (b *Bus) From(source Source) *Submitter {
	return &Submitter{bus: b, source: source}
}

// Subscribe opens a live stream subscription. Callers must Close it.
func (b *Bus) Subscribe() *Subscription[CommandMessage] {
	sub := b.stream.Subscribe()
	b.logger.Debug().Str("subscriber", sub.ID()).Msg("Stream subscriber attached")
	return sub
}

// SubscriberCount returns the number of live subscribers.
func (b *Bus) SubscriberCount() int {
	return b.stream.SubscriberCount()
}

// TakePending removes and returns the pending command for agentID.
func (b *Bus) TakePending(agentID string) (string, bool) {
	action, ok := b.mailbox.Take(agentID)
	if ok {
		b.metrics.SetPending(b.mailbox.Len())
	}
	return action, ok
}

// TakeAllPending removes and returns every pending command keyed by agent id.
func (b *Bus) TakeAllPending() map[string]string {
	all := b.mailbox.TakeAll()
	b.metrics.SetPending(0)
	return all
}

// Pending returns the pending command for agentID without removing it.
func (b *Bus) Pending(agentID string) (string, bool) {
	return b.mailbox.Peek(agentID)
}

// PendingCount returns the number of agents with a pending command.
func (b *Bus) PendingCount() int {
	return b.mailbox.Len()
}

// Close closes every live subscription. Pending mailbox entries are kept.
func (b *Bus) Close() {
	b.stream.Close()
}

// Submitter submits commands to a Bus under a fixed source label.
type Submitter struct {
	bus    *Bus
	source Source
}

// Submit forwards to Bus.SubmitFrom.
func (s *Submitter) Submit(agentID, action string) error {
	return s.bus.SubmitFrom(s.source, agentID, action)
}
