package realtime

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler upgrades GET /rooms/{room_id}/ws and bridges the socket to the
// hub: every inbound message becomes a Publish for the room, every hub
// signal is written back out. The payload is never inspected here.
func Handler(h *Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "room_id")
		if roomID == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			log.Warn("websocket accept failed",
				zap.String("room_id", roomID), zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan Signal, 8)
		clientID := randID(6)

		h.Inbox() <- Subscribe{RoomID: roomID, ClientID: clientID, Outbox: out}
		defer func() { h.Inbox() <- Unsubscribe{RoomID: roomID, ClientID: clientID} }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for sig := range out {
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, []byte(sig.Payload))
				cancel()
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				// Otherwise log and exit (Unsubscribe in defer):
				log.Info("websocket read ended",
					zap.String("room_id", roomID),
					zap.String("client_id", clientID),
					zap.Error(err))
				return
			}
			h.Inbox() <- Publish{RoomID: roomID, From: clientID, Payload: string(data)}
		}
	}
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
