package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/game"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/hub"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/session"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/store"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/pkg/types"
)

// Deps is everything the endpoint needs to stand up a session per
// connection.
type Deps struct {
	Hub     *hub.Hub
	Store   store.Store
	Session session.Config
	Log     *zap.Logger
}

func Handler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := game.SanitizeCode(r.URL.Query().Get("code"))
		playerID := r.URL.Query().Get("player_id")
		if code == "" || playerID == "" {
			http.Error(w, "missing code or player_id", http.StatusBadRequest)
			return
		}
		if _, err := d.Store.Get(r.Context(), game.RoomPath(code)); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "room not found", http.StatusNotFound)
				return
			}
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan session.Event, 16)
		sess := session.New(r.Context(), d.Session, code, playerID, out)
		d.Hub.Inbox() <- hub.Register{Session: sess}
		defer func() {
			d.Hub.Inbox() <- hub.Deregister{ID: sess.ID}
			sess.Inbox() <- session.Shutdown{}
		}()

		// Writer goroutine: session events out to the socket.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for ev := range out {
				payload, err := json.Marshal(toServerMessage(ev))
				if err != nil {
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop: client commands into the session.
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"Error","error":"bad json"}`))
				continue
			}

			cmd, ok := toSessionCommand(cm)
			if !ok {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"Error","error":"unknown type"}`))
				continue
			}

			sess.Inbox() <- session.FromClient{Cmd: cmd}
		}
	}
}

func toSessionCommand(m types.ClientMessage) (session.Command, bool) {
	switch m.Type {
	case "SubmitChoice":
		slot := -1
		if m.Slot != nil {
			slot = *m.Slot
		}
		return session.Command{Type: session.CmdSubmitChoice, Slot: slot}, true
	case "StartRound":
		return session.Command{Type: session.CmdStartRound}, true
	default:
		return session.Command{}, false
	}
}

func toServerMessage(ev session.Event) types.ServerMessage {
	return types.ServerMessage{
		Type:    string(ev.Kind),
		Version: ev.Version,
		View:    ev.View,
		Error:   ev.Err,
	}
}
