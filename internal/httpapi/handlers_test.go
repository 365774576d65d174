package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/game"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/store"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/topic"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.MemStore) {
	t.Helper()
	st := store.NewMemStore()
	d := &Deps{
		Store:       st,
		Topics:      topic.MustLoad(),
		Log:         zap.NewNop(),
		WS:          func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotImplemented) },
		CORSOrigins: []string{"*"},
	}
	srv := httptest.NewServer(SetupRoutes(d))
	t.Cleanup(srv.Close)
	return srv, st
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestCreateRoom(t *testing.T) {
	srv, st := newTestServer(t)

	resp := postJSON(t, srv.URL+"/rooms", map[string]string{
		"name": "Avery", "topic_id": "fast-food",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[roomResponse](t, resp)
	require.Len(t, created.Code, game.CodeLength)
	require.NotEmpty(t, created.PlayerID)

	raw, err := st.Get(context.Background(), game.RoomPath(created.Code))
	require.NoError(t, err)
	var room game.Room
	require.NoError(t, json.Unmarshal(raw, &room))
	require.Equal(t, game.StatusLobby, room.Status)
	require.Equal(t, -1, room.CurrentIndex)
	require.Equal(t, created.PlayerID, room.HostID)
	require.Len(t, room.Order, 10)

	raw, err = st.Get(context.Background(), game.PlayerPath(created.Code, created.PlayerID))
	require.NoError(t, err)
	var host game.Player
	require.NoError(t, json.Unmarshal(raw, &host))
	require.Equal(t, "Avery", host.Name)
	require.Len(t, host.Ranking, 10)
}

func TestCreateRoomValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		label string
		body  map[string]string
		want  int
	}{
		{"missing name", map[string]string{"topic_id": "fast-food"}, http.StatusBadRequest},
		{"blank name", map[string]string{"name": "   ", "topic_id": "fast-food"}, http.StatusBadRequest},
		{"unknown topic", map[string]string{"name": "Avery", "topic_id": "nope"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/rooms", tc.body)
			resp.Body.Close()
			require.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestJoinRoom(t *testing.T) {
	srv, st := newTestServer(t)

	resp := postJSON(t, srv.URL+"/rooms", map[string]string{
		"name": "Avery", "topic_id": "fast-food",
	})
	created := decode[roomResponse](t, resp)

	// Codes are matched case-insensitively.
	resp = postJSON(t, srv.URL+"/rooms/"+strings.ToLower(created.Code)+"/join", map[string]string{"name": "Blake"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	joined := decode[roomResponse](t, resp)
	require.Equal(t, created.Code, joined.Code)
	require.NotEmpty(t, joined.PlayerID)
	require.NotEqual(t, created.PlayerID, joined.PlayerID)

	// Rejoining with the same player_id keeps the identity.
	resp = postJSON(t, srv.URL+"/rooms/"+created.Code+"/join", map[string]string{
		"name": "Blake", "player_id": joined.PlayerID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rejoined := decode[roomResponse](t, resp)
	require.Equal(t, joined.PlayerID, rejoined.PlayerID)

	raw, err := st.Get(context.Background(), game.PlayerPath(created.Code, joined.PlayerID))
	require.NoError(t, err)
	var p game.Player
	require.NoError(t, json.Unmarshal(raw, &p))
	require.Equal(t, "Blake", p.Name)
}

func TestJoinRoomRejections(t *testing.T) {
	srv, st := newTestServer(t)

	resp := postJSON(t, srv.URL+"/rooms/QQQQ/join", map[string]string{"name": "Blake"})
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	started := game.NewRoom("WXYZ", "fast-food", []string{"a", "b"}, "h", time.Now())
	started.Status = game.StatusInRound
	started.CurrentIndex = 0
	require.NoError(t, st.Set(context.Background(), game.RoomPath("WXYZ"), started))

	resp = postJSON(t, srv.URL+"/rooms/WXYZ/join", map[string]string{"name": "Blake"})
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/rooms/WXYZ/join", map[string]string{"name": ""})
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListTopics(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/topics")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Topics []topic.Topic `json:"topics"`
	}](t, resp)
	require.NotEmpty(t, body.Topics)
	for _, tp := range body.Topics {
		require.NotEmpty(t, tp.ID)
		require.NotEmpty(t, tp.Items)
	}
}

func TestRoomQR(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/rooms", map[string]string{
		"name": "Avery", "topic_id": "fast-food",
	})
	created := decode[roomResponse](t, resp)

	qr, err := http.Get(srv.URL + "/rooms/" + created.Code + "/qr")
	require.NoError(t, err)
	defer qr.Body.Close()
	require.Equal(t, http.StatusOK, qr.StatusCode)
	require.Equal(t, "image/png", qr.Header.Get("Content-Type"))

	missing, err := http.Get(srv.URL + "/rooms/QQQQ/qr")
	require.NoError(t, err)
	missing.Body.Close()
	require.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
