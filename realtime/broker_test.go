package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBroker(t *testing.T) *Broker {
	t.Helper()
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	t.Cleanup(cancel)
	return b
}

func TestBrokerDeliversToSubscribers(t *testing.T) {
	b := startBroker(t)
	ch := b.Subscribe()
	require.NotNil(t, ch)

	b.Broadcast(EventWebhookAlert, map[string]string{"symbol": "TCS"})

	select {
	case frame := <-ch:
		var msg struct {
			Event   string            `json:"event"`
			Payload map[string]string `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(frame, &msg))
		assert.Equal(t, EventWebhookAlert, msg.Event)
		assert.Equal(t, "TCS", msg.Payload["symbol"])
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}
}

func TestBrokerSkipsSlowClients(t *testing.T) {
	b := startBroker(t)
	slow := b.Subscribe()
	require.NotNil(t, slow)

	done := make(chan struct{})
	go func() {
		for i := 0; i < clientBuffer*4; i++ {
			b.Broadcast(EventSnapshotIngested, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a slow client")
	}
}

func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	b := startBroker(t)
	ch := b.Subscribe()
	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	b.Unsubscribe(ch)
	require.Eventually(t, func() bool { return b.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-ch
	assert.False(t, open)
}

func TestSubscribeAfterStopReturnsNil(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() { b.Run(ctx); close(stopped) }()
	cancel()
	<-stopped

	assert.Nil(t, b.Subscribe())
}

func TestSSEStream(t *testing.T) {
	b := startBroker(t)
	srv := httptest.NewServer(b)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	b.Broadcast(EventAnalysisCompleted, map[string]string{"date": "2024-08-05"})

	reader := bufio.NewReader(resp.Body)
	deadline := time.After(2 * time.Second)
	for {
		lineCh := make(chan string, 1)
		go func() {
			line, _ := reader.ReadString('\n')
			lineCh <- line
		}()
		select {
		case line := <-lineCh:
			if strings.HasPrefix(line, "data: ") {
				assert.Contains(t, line, EventAnalysisCompleted)
				return
			}
		case <-deadline:
			t.Fatal("no SSE data line received")
		}
	}
}

func TestWebsocketStream(t *testing.T) {
	b := startBroker(t)
	srv := httptest.NewServer(NewWSHandler(b, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	b.Broadcast(EventWebhookAlert, map[string]int{"count": 2})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, EventWebhookAlert, msg.Event)
}

func TestWebsocketRejectsDisallowedOrigin(t *testing.T) {
	b := startBroker(t)
	srv := httptest.NewServer(NewWSHandler(b, func(origin string) bool { return origin == "https://ok.example" }))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
