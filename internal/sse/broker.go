// Package sse implements a Server-Sent Events broker that fans editor
// events out to the browser tabs of one operator session.
package sse

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	j "github.com/goccy/go-json"
)

// Event types published by the editor.
const (
	TypeDocumentChanged = "document.changed"
	TypeSaveFinished    = "save.finished"
	TypeLoadFinished    = "load.finished"
	TypeUploadFinished  = "upload.finished"
)

// Event represents an SSE event for one session.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type changeReq struct {
	session string
	change  Change
}

// Change is the payload of a document.changed event. Origin is empty when
// the event merges changes from different clients.
type Change struct {
	Revision uint64 `json:"revision"`
	Origin   string `json:"origin,omitempty"`
}

type subReq struct {
	session string
	ch      chan []byte
}

type countReq struct {
	session string
	resp    chan int
}

type publishReq struct {
	session string
	event   Event
}

// Broker manages SSE client connections grouped by session.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients per session + change coalescing). Public methods communicate with this
// loop through channels, so no mutexes are required.
type Broker struct {
	coalesce time.Duration

	subscribeCh   chan subReq
	unsubscribeCh chan subReq
	publishCh     chan publishReq
	changeCh      chan changeReq
	countReqCh    chan countReq

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits at most one document.changed event per
// session per coalesce interval. A change arriving inside the interval is held
// and sent when the interval ends, carrying the latest revision.
func NewBroker(coalesce time.Duration) *Broker {
	if coalesce <= 0 {
		coalesce = 250 * time.Millisecond
	}

	b := &Broker{
		coalesce:      coalesce,
		subscribeCh:   make(chan subReq),
		unsubscribeCh: make(chan subReq),
		publishCh:     make(chan publishReq, 256),
		changeCh:      make(chan changeReq, 256),
		countReqCh:    make(chan countReq),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[string]map[chan []byte]struct{})
	lastChange := make(map[string]time.Time)
	pending := make(map[string]Change)

	ticker := time.NewTicker(b.coalesce / 2)
	defer ticker.Stop()

	send := func(session string, event Event) {
		set := clients[session]
		if len(set) == 0 {
			return
		}
		payload, err := j.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))
		for ch := range set {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	changed := func(session string, change Change, now time.Time) {
		lastChange[session] = now
		delete(pending, session)
		send(session, Event{Type: TypeDocumentChanged, Data: change})
	}

	for {
		select {
		case <-b.stopCh:
			for _, set := range clients {
				for ch := range set {
					close(ch)
				}
			}
			return

		case req := <-b.subscribeCh:
			set, ok := clients[req.session]
			if !ok {
				set = make(map[chan []byte]struct{})
				clients[req.session] = set
			}
			set[req.ch] = struct{}{}

		case req := <-b.unsubscribeCh:
			set := clients[req.session]
			if _, ok := set[req.ch]; ok {
				delete(set, req.ch)
				close(req.ch)
			}
			if len(set) == 0 {
				delete(clients, req.session)
				delete(lastChange, req.session)
				delete(pending, req.session)
			}

		case req := <-b.publishCh:
			send(req.session, req.event)

		case req := <-b.changeCh:
			now := time.Now()
			if now.Sub(lastChange[req.session]) >= b.coalesce {
				changed(req.session, req.change, now)
				break
			}
			next := req.change
			if held, ok := pending[req.session]; ok && held.Origin != next.Origin {
				next.Origin = ""
			}
			pending[req.session] = next

		case now := <-ticker.C:
			for session, change := range pending {
				if now.Sub(lastChange[session]) >= b.coalesce {
					changed(session, change, now)
				}
			}

		case req := <-b.countReqCh:
			if req.session == "" {
				n := 0
				for _, set := range clients {
					n += len(set)
				}
				req.resp <- n
			} else {
				req.resp <- len(clients[req.session])
			}
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client for session and returns its channel.
func (b *Broker) Subscribe(session string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subReq{session: session, ch: ch}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(session string, ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- subReq{session: session, ch: ch}:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients of session, or of all
// sessions when session is empty.
func (b *Broker) ClientCount(session string) int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- countReq{session: session, resp: resp}:
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

// Publish sends an event to every client of session.
func (b *Broker) Publish(session string, event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- publishReq{session: session, event: event}:
	case <-b.stopped:
	}
}

// PublishChange reports a new document revision for session, coalesced.
// origin names the client that made the change and may be empty.
func (b *Broker) PublishChange(session string, revision uint64, origin string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- changeReq{session: session, change: Change{Revision: revision, Origin: origin}}:
	case <-b.stopped:
	}
}

// Serve streams the events of session to w until the request ends or the
// broker closes.
func (b *Broker) Serve(w http.ResponseWriter, r *http.Request, session string) {
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

	ch := b.Subscribe(session)
	defer b.Unsubscribe(session, ch)

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
