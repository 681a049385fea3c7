// Package sse implements a Server-Sent Events broker that carries preview
// notifications to browsers and announces content changes.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/heritage/internal/preview"
)

// Event types.
const (
	EventToast          = "toast"
	EventContentUpdated = "content.updated"
)

const (
	clientBuffer = 64
	topicBacklog = 16
)

// Event is an SSE event. An empty Topic broadcasts to every client.
type Event struct {
	Topic string      `json:"-"`
	Type  string      `json:"type"`
	Data  interface{} `json:"data"`
}

type subscription struct {
	ch    chan []byte
	topic string
}

type contentChange struct {
	kind string
	path string
}

// Broker manages SSE client connections and routes events by topic.
//
// A single internal event loop owns mutable state (clients, per-topic
// backlog, content throttle timestamp). Public methods talk to the loop over
// channels, so no mutexes are required.
//
// Topic events are kept in a short backlog until Forget is called, so a
// client that subscribes after a notification was emitted still sees it.
type Broker struct {
	contentMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan contentChange
	forgetCh      chan string
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that sends at most one content.updated event per
// contentThrottle interval.
func NewBroker(contentThrottle time.Duration) *Broker {
	if contentThrottle <= 0 {
		contentThrottle = 2 * time.Second
	}

	b := &Broker{
		contentMin:    contentThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan contentChange, 256),
		forgetCh:      make(chan string, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func encode(event Event) ([]byte, bool) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, false
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)), true
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	backlog := make(map[string][][]byte)
	var lastContent time.Time

	deliver := func(ch chan []byte, raw []byte) {
		select {
		case ch <- raw:
		default:
			// Client buffer full; skip to avoid blocking the loop.
		}
	}

	broadcast := func(event Event) {
		raw, ok := encode(event)
		if !ok {
			return
		}
		if event.Topic != "" {
			q := append(backlog[event.Topic], raw)
			if len(q) > topicBacklog {
				q = q[len(q)-topicBacklog:]
			}
			backlog[event.Topic] = q
		}
		for ch, topic := range clients {
			if event.Topic == "" || event.Topic == topic {
				deliver(ch, raw)
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.topic
			if sub.topic != "" {
				for _, raw := range backlog[sub.topic] {
					deliver(sub.ch, raw)
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case topic := <-b.forgetCh:
			delete(backlog, topic)

		case change := <-b.changeCh:
			now := time.Now()
			if now.Sub(lastContent) >= b.contentMin {
				lastContent = now
				broadcast(Event{Type: EventContentUpdated, Data: map[string]string{
					"kind": change.kind,
					"path": change.path,
				}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops the broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client for topic ("" for broadcasts only) and returns its channel.
func (b *Broker) Subscribe(topic string) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, topic: topic}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish routes an event to the clients of its topic.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// Forget drops the backlog kept for topic.
func (b *Broker) Forget(topic string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.forgetCh <- topic:
	case <-b.stopped:
	}
}

// PublishContentChange announces a catalog change, throttled.
func (b *Broker) PublishContentChange(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- contentChange{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// Notifier returns a preview.Notifier that publishes toasts on topic.
func (b *Broker) Notifier(topic string) preview.Notifier {
	return preview.NotifierFunc(func(n preview.Notification) {
		b.Publish(Event{Topic: topic, Type: EventToast, Data: n})
	})
}

// ServeHTTP streams broadcast events (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.ServeTopic(w, r, "")
}

// ServeTopic streams broadcast events plus the events of topic.
func (b *Broker) ServeTopic(w http.ResponseWriter, r *http.Request, topic string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(topic)
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
