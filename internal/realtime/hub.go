package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cardroom/internal/types"
)

// Signal is one inbound channel notification. The payload carries no state
// of its own; Timestamp lets a consumer tell a repeated token apart from a
// stale duplicate.
type Signal struct {
	Payload   string
	Timestamp time.Time
}

type HubMsg interface{ isHubMsg() }

type Subscribe struct {
	RoomID   string
	ClientID string
	Outbox   chan Signal // where this subscriber wants to receive signals
}

type Unsubscribe struct {
	RoomID   string
	ClientID string
}

// Publish fans a signal out to every subscriber of the room except the
// sender; the sender already holds the state change it is announcing.
type Publish struct {
	RoomID  string
	From    string
	Payload string
}

type Shutdown struct{}

type RoomCount struct {
	RoomID string
	Reply  chan int
}

func (Subscribe) isHubMsg()   {}
func (Unsubscribe) isHubMsg() {}
func (Publish) isHubMsg()     {}
func (Shutdown) isHubMsg()    {}
func (RoomCount) isHubMsg()   {}

// Hub routes refresh signals between every websocket attached to the same
// room. One goroutine owns all topic state; callers talk to it through the
// inbox only.
type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]map[string]chan Signal
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]map[string]chan Signal),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Notify is a convenience for server-side publishers (e.g. a handler that
// just mutated a room) that are not subscribed themselves.
func (h *Hub) Notify(roomID string) {
	h.inbox <- Publish{RoomID: roomID, Payload: types.RefreshToken}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Subscribe:
				subs := h.rooms[msg.RoomID]
				if subs == nil {
					subs = make(map[string]chan Signal)
					h.rooms[msg.RoomID] = subs
				}
				subs[msg.ClientID] = msg.Outbox

			case Unsubscribe:
				subs := h.rooms[msg.RoomID]
				if ch, ok := subs[msg.ClientID]; ok {
					close(ch)
					delete(subs, msg.ClientID)
				}
				if len(subs) == 0 {
					delete(h.rooms, msg.RoomID)
				}

			case Publish:
				sig := Signal{Payload: msg.Payload, Timestamp: time.Now()}
				for id, ch := range h.rooms[msg.RoomID] {
					if id == msg.From {
						continue
					}
					select {
					case ch <- sig:
						// ok
					default:
						// Subscriber is slow/full - drop them.
						close(ch)
						delete(h.rooms[msg.RoomID], id)
						h.log.Warn("dropped slow subscriber",
							zap.String("room_id", msg.RoomID),
							zap.String("client_id", id))
					}
				}

			case RoomCount:
				msg.Reply <- len(h.rooms[msg.RoomID])

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for roomID, subs := range h.rooms {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(h.rooms, roomID)
	}
	h.cancel()
}
