package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/game"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/store"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/topic"
)

type createRoomRequest struct {
	Name    string `json:"name"`
	TopicID string `json:"topic_id"`
}

type joinRoomRequest struct {
	Name     string `json:"name"`
	PlayerID string `json:"player_id,omitempty"`
}

type roomResponse struct {
	Code     string `json:"code"`
	PlayerID string `json:"player_id"`
}

// CreateRoom generates a fresh code, writes the room record with a shuffled
// reveal order, and creates the host's player record.
func CreateRoom(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, game.ErrNameRequired.Error())
			return
		}
		t, ok := d.Topics.Get(req.TopicID)
		if !ok {
			writeError(w, http.StatusBadRequest, game.ErrUnknownTopic.Error())
			return
		}

		var code string
		for {
			c, err := game.NewCode()
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to generate code")
				return
			}
			_, err = d.Store.Get(r.Context(), game.RoomPath(c))
			if errors.Is(err, store.ErrNotFound) {
				code = c
				break
			}
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, "store unavailable")
				return
			}
			d.Log.Info("room code collision, regenerating", zap.String("code", c))
		}

		hostID := uuid.NewString()
		now := time.Now()
		room := game.NewRoom(code, t.ID, t.Items, hostID, now)
		if err := d.Store.Set(r.Context(), game.RoomPath(code), room); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
		host := game.NewPlayer(hostID, name, len(t.Items), now)
		if err := d.Store.Set(r.Context(), game.PlayerPath(code, hostID), host); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}

		d.Log.Info("room created",
			zap.String("code", code), zap.String("topic", t.ID), zap.String("host", hostID))
		writeJSON(w, http.StatusCreated, roomResponse{Code: code, PlayerID: hostID})
	}
}

// JoinRoom adds a player to a lobby. Joining a started room is rejected; a
// returning player may present their previous player_id to reclaim it.
func JoinRoom(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := game.SanitizeCode(chi.URLParam(r, "code"))
		var req joinRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, game.ErrNameRequired.Error())
			return
		}

		raw, err := d.Store.Get(r.Context(), game.RoomPath(code))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, game.ErrRoomNotFound.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
		var room game.Room
		if err := json.Unmarshal(raw, &room); err != nil {
			writeError(w, http.StatusInternalServerError, "bad room record")
			return
		}
		if room.Status != game.StatusLobby {
			writeError(w, http.StatusConflict, game.ErrRoomStarted.Error())
			return
		}

		playerID := req.PlayerID
		if playerID == "" {
			playerID = uuid.NewString()
		}
		player := game.NewPlayer(playerID, name, len(room.Order), time.Now())
		if err := d.Store.Set(r.Context(), game.PlayerPath(code, playerID), player); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}

		d.Log.Info("player joined",
			zap.String("code", code), zap.String("player", playerID))
		writeJSON(w, http.StatusOK, roomResponse{Code: code, PlayerID: playerID})
	}
}

// ListTopics serves the catalog for the create-room screen.
func ListTopics(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			Topics []topic.Topic `json:"topics"`
		}{Topics: d.Topics.List()})
	}
}

// RoomQR serves a PNG QR code of the join URL so the host can put the room
// on a shared screen.
func RoomQR(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := game.SanitizeCode(chi.URLParam(r, "code"))
		if _, err := d.Store.Get(r.Context(), game.RoomPath(code)); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, game.ErrRoomNotFound.Error())
				return
			}
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		url := scheme + "://" + r.Host + "/?code=" + code

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "qr generation failed")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}
