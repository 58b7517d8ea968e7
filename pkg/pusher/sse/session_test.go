package sse

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-community/workshops/pkg/pusher/events"
)

func Test_session_StreamEvents(t *testing.T) {
	cancelIsCalled := false
	s := &session{
		eventCh: make(chan Event, 10),
		cancel: func() {
			cancelIsCalled = true
		},
		pingInterval: 300 * time.Millisecond,
	}
	s.SendEvent(Event{Name: events.PostEvent, EventID: 1, Data: []byte(`{"content":"hello"}`)})
	s.SendEvent(Event{Name: events.PostEvent, EventID: 2, Data: []byte(`{"content":"chain"}`)})

	ctx, cancel := context.WithTimeout(context.Background(), 450*time.Millisecond)
	defer cancel()
	rec := httptest.NewRecorder()
	err := s.StreamEvents(ctx, rec)
	require.Nil(t, err)
	require.True(t, cancelIsCalled)

	expectedBody := `event: post
id: 1
data: {"content":"hello"}

event: post
id: 2
data: {"content":"chain"}

event: heartbeat

`
	require.Equal(t, expectedBody, rec.Body.String())
}

func Test_session_SendEvent_dropsWhenFull(t *testing.T) {
	s := &session{eventCh: make(chan Event, 1)}
	s.SendEvent(Event{Name: events.PostEvent, EventID: 1})
	s.SendEvent(Event{Name: events.PostEvent, EventID: 2})
	require.Len(t, s.eventCh, 1)
	require.Equal(t, int64(1), (<-s.eventCh).EventID)
}
