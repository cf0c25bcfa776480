package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"nse-pulse/metrics"
)

// Event names pushed to dashboards
const (
	EventSnapshotIngested  = "snapshot_ingested"
	EventWebhookAlert      = "webhook_alert"
	EventAnalysisCompleted = "analysis_completed"
)

const (
	clientBuffer      = 16
	broadcastBuffer   = 1000
	sseKeepAlive      = 30 * time.Second
	defaultRedisTopic = "nse-pulse:events"
)

// Message is the JSON frame delivered to every client
type Message struct {
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher is anything that can push a named event to dashboards
type Publisher interface {
	Broadcast(event string, payload interface{})
}

// Broker fans events out to SSE and websocket clients.
// A slow client whose buffer is full misses the message; producers never block.
type Broker struct {
	clients    map[chan []byte]bool
	register   chan chan []byte
	unregister chan chan []byte
	broadcast  chan []byte
	done       chan struct{}
	mu         sync.RWMutex

	remote remoteBus
}

// NewBroker creates a new broker. Call Run to start delivering.
func NewBroker() *Broker {
	return &Broker{
		clients:    make(map[chan []byte]bool),
		register:   make(chan chan []byte),
		unregister: make(chan chan []byte),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
	}
}

// Run starts the broker loop and returns when ctx is cancelled
func (b *Broker) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for client := range b.clients {
				delete(b.clients, client)
				close(client)
			}
			b.mu.Unlock()
			return

		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			total := len(b.clients)
			b.mu.Unlock()
			metrics.LiveClients.Set(float64(total))
			log.Debug().Int("total", total).Msg("Live client connected")

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client)
			}
			total := len(b.clients)
			b.mu.Unlock()
			metrics.LiveClients.Set(float64(total))
			log.Debug().Int("total", total).Msg("Live client disconnected")

		case msg := <-b.broadcast:
			b.mu.RLock()
			for client := range b.clients {
				select {
				case client <- msg:
				default:
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Subscribe registers a new client channel. It returns nil once the broker has stopped.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	select {
	case b.register <- ch:
		return ch
	case <-b.done:
		return nil
	}
}

// Unsubscribe removes a client channel and closes it
func (b *Broker) Unsubscribe(ch chan []byte) {
	if ch == nil {
		return
	}
	select {
	case b.unregister <- ch:
	case <-b.done:
	}
}

// ClientCount returns the number of connected clients
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends an event to all connected clients, across instances when a
// redis bus is attached.
func (b *Broker) Broadcast(event string, payload interface{}) {
	msg := Message{Event: event, Payload: payload, Timestamp: time.Now().UTC()}
	jsonBytes, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Error marshalling broadcast message")
		return
	}

	if b.remote != nil {
		if err := b.remote.publish(jsonBytes); err == nil {
			return
		}
		log.Warn().Err(err).Msg("Redis publish failed, delivering locally")
	}
	b.deliver(jsonBytes)
}

// deliver queues a frame for local clients, dropping it if the queue is full
func (b *Broker) deliver(frame []byte) {
	select {
	case b.broadcast <- frame:
	default:
	}
}

// ServeHTTP handles the SSE endpoint
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientChan := b.Subscribe()
	if clientChan == nil {
		http.Error(w, "broker stopped", http.StatusServiceUnavailable)
		return
	}
	defer b.Unsubscribe(clientChan)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, open := <-clientChan:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
