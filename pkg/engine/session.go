package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/germanamz/llamagent/pkg/agent"
	"github.com/germanamz/llamagent/pkg/chats/chat"
	"github.com/germanamz/llamagent/pkg/chats/message"
)

// UserSender is the sender name of messages typed by the user.
const UserSender = "user"

// Session represents one interactive conversation. It owns a chat and an agent
// instance. Only one Send call may be active at a time.
type Session struct {
	id     string
	agent  *agent.Agent
	events *EventBus

	mu     sync.Mutex
	active bool
}

// newSession creates a session with the given ID, agent, and event bus.
func newSession(id string, a *agent.Agent, events *EventBus) *Session {
	return &Session{
		id:     id,
		agent:  a,
		events: events,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Chat returns the underlying chat.
func (s *Session) Chat() *chat.Chat { return s.agent.Chat() }

// Send appends a text message from the user and runs one agent turn. It
// returns the agent's final reply. Only one Send may be active per session.
func (s *Session) Send(ctx context.Context, text string) (message.Message, error) {
	if err := s.acquire(); err != nil {
		return message.Message{}, err
	}
	defer s.release()

	s.publish(EventAgentStart, nil)

	reply, err := s.agent.Send(ctx, UserSender, text)
	if err != nil {
		s.publish(EventError, err)
		s.publish(EventAgentEnd, nil)
		return message.Message{}, err
	}

	s.publish(EventAgentEnd, nil)

	return reply, nil
}

func (s *Session) publish(kind EventKind, data any) {
	s.events.Publish(Event{
		Kind:      kind,
		SessionID: s.id,
		Agent:     s.agent.Name(),
		Timestamp: time.Now(),
		Data:      data,
	})
}

func (s *Session) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return fmt.Errorf("engine: session %s: %w", s.id, ErrSessionBusy)
	}
	s.active = true
	return nil
}

func (s *Session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = false
}
