package engine

import (
	"testing"

	"github.com/germanamz/llamagent/pkg/chats/content"
	"github.com/germanamz/llamagent/pkg/chats/message"
	"github.com/germanamz/llamagent/pkg/chats/role"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_EverySubscriberReceives(t *testing.T) {
	bus := NewEventBus()
	a, b := bus.Subscribe(2), bus.Subscribe(2)
	defer bus.Unsubscribe(a)
	defer bus.Unsubscribe(b)

	bus.Publish(Event{Kind: EventToolCallStart, SessionID: "s1", Agent: DefaultAgentName})

	for _, sub := range []*Subscription{a, b} {
		got := drain(sub)
		require.Len(t, got, 1)
		assert.Equal(t, EventToolCallStart, got[0].Kind)
		assert.Equal(t, "s1", got[0].SessionID)
		assert.Equal(t, DefaultAgentName, got[0].Agent)
	}
}

func TestEventBus_FullSubscriberDropsEvents(t *testing.T) {
	bus := NewEventBus()
	slow := bus.Subscribe(1)
	fast := bus.Subscribe(4)
	defer bus.Unsubscribe(slow)
	defer bus.Unsubscribe(fast)

	bus.Publish(Event{Kind: EventAgentStart})
	bus.Publish(Event{Kind: EventAgentEnd})

	assert.Equal(t, []EventKind{EventAgentStart}, kinds(drain(slow)))
	assert.Equal(t, []EventKind{EventAgentStart, EventAgentEnd}, kinds(drain(fast)))
}

func TestEventBus_UnsubscribeClosesOnce(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(1)

	bus.Unsubscribe(sub)
	_, open := <-sub.C
	assert.False(t, open)

	assert.NotPanics(t, func() {
		bus.Unsubscribe(sub)
		bus.Publish(Event{Kind: EventError})
	})
}

func TestBusObserver(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(8)
	defer bus.Unsubscribe(sub)

	obs := &busObserver{bus: bus, sessionID: "s7"}
	tc := content.ToolCall{ID: "c1", Name: "calculator", Arguments: `{"expression":"1 + 1"}`}
	res := content.ToolResult{ToolCallID: "c1", Name: "calculator", Content: "2"}

	obs.MessageAdded("assistant", message.NewText("assistant", role.Assistant, "hi"))
	obs.ToolCallStarted("assistant", tc)
	obs.ToolCallFinished("assistant", tc, res)

	events := drain(sub)
	require.Equal(t, []EventKind{EventMessageAdded, EventToolCallStart, EventToolCallEnd}, kinds(events))

	for _, e := range events {
		assert.Equal(t, "s7", e.SessionID)
		assert.Equal(t, "assistant", e.Agent)
		assert.False(t, e.Timestamp.IsZero())
	}
	assert.Equal(t, tc, events[1].Data)
	assert.Equal(t, ToolCallEnd{Call: tc, Result: res}, events[2].Data)
}
