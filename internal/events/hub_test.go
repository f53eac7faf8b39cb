package events

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, s *Subscription) Event {
	t.Helper()
	select {
	case ev := <-s.C():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestHubFanOut(t *testing.T) {
	hub := NewHub(4, nil)
	a := hub.Subscribe()
	b := hub.Subscribe()
	assert.Equal(t, 2, hub.Subscribers())

	hub.Publish("store-updates", []string{"x"})

	assert.Equal(t, Event{Event: "store-updates", Payload: []string{"x"}}, receive(t, a))
	assert.Equal(t, "store-updates", receive(t, b).Event)

	a.Close()
	a.Close()
	assert.Equal(t, 1, hub.Subscribers())
	_, ok := <-a.C()
	assert.False(t, ok)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(1, nil)
	slow := hub.Subscribe()

	done := make(chan struct{})
	go func() {
		hub.Publish("one", 1)
		hub.Publish("two", 2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	assert.Equal(t, "one", receive(t, slow).Event)
	select {
	case ev := <-slow.C():
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestHubClose(t *testing.T) {
	hub := NewHub(0, nil)
	s := hub.Subscribe()
	hub.Close()

	_, ok := <-s.C()
	assert.False(t, ok)

	late := hub.Subscribe()
	_, ok = <-late.C()
	assert.False(t, ok)
	hub.Publish("ignored", nil)
}

func TestWebsocketHandler(t *testing.T) {
	hub := NewHub(4, nil)
	server := httptest.NewServer(hub.WebsocketHandler())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish("store-updates", []map[string]string{{"changeType": "Added", "path": "a.md"}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var got struct {
		Event   string              `json:"event"`
		Payload []map[string]string `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "store-updates", got.Event)
	assert.Equal(t, "Added", got.Payload[0]["changeType"])

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}
