package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vsnplyr/internal/apperr"
	"vsnplyr/internal/config"
	"vsnplyr/internal/database"
	"vsnplyr/internal/gateway"
	"vsnplyr/internal/live"
	"vsnplyr/internal/rpc"
	"vsnplyr/internal/session"
	"vsnplyr/pkg/models"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server   *httptest.Server
	gw       *gateway.Gateway
	registry *session.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	bus := live.NewBus(logger)
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "server.db"), database.Options{MaxConnections: 4}, logger, bus)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gw := gateway.New(db, logger)
	registry := session.NewRegistry()
	ps := NewPlaylistServer(config.DefaultConfig(), gw, db, bus, registry, logger)

	srv := httptest.NewServer(ps.Router())
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, gw: gw, registry: registry}
}

// call posts body to method and returns the status and raw response.
func (e *testEnv) call(t *testing.T, method string, body interface{}) (int, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+rpc.MethodPath(method), "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func result[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var r rpc.Response[T]
	require.NoError(t, json.Unmarshal(raw, &r), string(raw))
	return r.Result
}

func rpcError(t *testing.T, raw []byte) rpc.Error {
	t.Helper()
	var r rpc.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &r), string(raw))
	return r.Error
}

func (e *testEnv) song(t *testing.T, name string) string {
	t.Helper()
	status, raw := e.call(t, rpc.AddSong, models.SongInput{
		Name:     name,
		Artist:   "Artist",
		Duration: 120,
		AudioURL: "https://cdn.example.com/" + name,
	})
	require.Equal(t, http.StatusOK, status, string(raw))
	return result[string](t, raw)
}

func (e *testEnv) playlist(t *testing.T, name string) string {
	t.Helper()
	status, raw := e.call(t, rpc.CreatePlaylist, models.PlaylistInput{Name: name})
	require.Equal(t, http.StatusOK, status, string(raw))
	return result[string](t, raw)
}

func TestMembershipRPCs(t *testing.T) {
	env := newTestEnv(t)
	p := env.playlist(t, "Mix")
	a, b, c := env.song(t, "a"), env.song(t, "b"), env.song(t, "c")

	for _, s := range []string{a, b, c} {
		status, raw := env.call(t, rpc.AddSongToPlaylist, rpc.MemberRequest{PlaylistID: p, SongID: s})
		require.Equal(t, http.StatusOK, status, string(raw))
		assert.NotEmpty(t, result[string](t, raw))
	}

	status, raw := env.call(t, rpc.MoveSongInPlaylist, rpc.MoveRequest{PlaylistID: p, SongID: c, Position: 1})
	require.Equal(t, http.StatusOK, status, string(raw))

	status, raw = env.call(t, rpc.GetPlaylistSongs, rpc.PlaylistRequest{PlaylistID: p})
	require.Equal(t, http.StatusOK, status)
	songs := result[[]models.PlaylistSong](t, raw)
	require.Len(t, songs, 3)
	assert.Equal(t, []string{c, a, b}, []string{songs[0].ID, songs[1].ID, songs[2].ID})
	assert.Equal(t, []int{1, 2, 3}, []int{songs[0].Position, songs[1].Position, songs[2].Position})

	status, raw = env.call(t, rpc.RemoveSongFromPlaylist, rpc.MemberRequest{PlaylistID: p, SongID: a})
	require.Equal(t, http.StatusOK, status, string(raw))

	status, raw = env.call(t, rpc.GetPlaylistSongCount, rpc.PlaylistRequest{PlaylistID: p})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, result[int](t, raw))

	status, raw = env.call(t, rpc.IsSongInPlaylist, rpc.MemberRequest{PlaylistID: p, SongID: a})
	require.Equal(t, http.StatusOK, status)
	assert.False(t, result[bool](t, raw))
}

func TestRPCErrorEnvelope(t *testing.T) {
	env := newTestEnv(t)
	p := env.playlist(t, "Mix")
	a := env.song(t, "a")
	_, err := env.gw.AddMember(context.Background(), p, a)
	require.NoError(t, err)

	tests := []struct {
		name       string
		method     string
		body       interface{}
		wantStatus int
		wantCode   string
		wantErr    error
	}{
		{
			name:       "duplicate member",
			method:     rpc.AddSongToPlaylist,
			body:       rpc.MemberRequest{PlaylistID: p, SongID: a},
			wantStatus: http.StatusConflict,
			wantCode:   apperr.CodeDuplicateMember,
			wantErr:    apperr.ErrDuplicateMember,
		},
		{
			name:       "position out of range",
			method:     rpc.MoveSongInPlaylist,
			body:       rpc.MoveRequest{PlaylistID: p, SongID: a, Position: 5},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   apperr.CodePositionOutOfRange,
			wantErr:    apperr.ErrPositionOutOfRange,
		},
		{
			name:       "missing playlist",
			method:     rpc.AddSongToPlaylist,
			body:       rpc.MemberRequest{PlaylistID: "nope", SongID: a},
			wantStatus: http.StatusNotFound,
			wantCode:   apperr.CodeNotFound,
			wantErr:    apperr.ErrNotFound,
		},
		{
			name:       "empty playlist name",
			method:     rpc.CreatePlaylist,
			body:       models.PlaylistInput{Name: "  "},
			wantStatus: http.StatusBadRequest,
			wantCode:   apperr.CodeValidation,
			wantErr:    apperr.ErrValidation,
		},
		{
			name:   "unknown update field",
			method: rpc.UpdatePlaylist,
			body: rpc.UpdatePlaylistRequest{PlaylistID: p, Updates: []models.FieldUpdate{
				{Field: "owner", Value: json.RawMessage(`"me"`)},
			}},
			wantStatus: http.StatusBadRequest,
			wantCode:   apperr.CodeValidation,
			wantErr:    apperr.ErrValidation,
		},
		{
			name:       "unknown method",
			method:     "dropTables",
			body:       struct{}{},
			wantStatus: http.StatusBadRequest,
			wantCode:   apperr.CodeValidation,
			wantErr:    apperr.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := env.call(t, tt.method, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			body := rpcError(t, raw)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.ErrorIs(t, body.Err(), tt.wantErr)
		})
	}
}

func TestRPCRejectsMalformedJSON(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Post(env.server.URL+rpc.MethodPath(rpc.CreatePlaylist), "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateSongRPC(t *testing.T) {
	env := newTestEnv(t)
	a := env.song(t, "a")

	status, raw := env.call(t, rpc.UpdateSong, rpc.UpdateSongRequest{SongID: a, Updates: []models.FieldUpdate{
		{Field: "name", Value: json.RawMessage(`"Renamed"`)},
		{Field: "bpm", Value: json.RawMessage(`128`)},
	}})
	require.Equal(t, http.StatusOK, status, string(raw))
	song := result[models.Song](t, raw)
	assert.Equal(t, "Renamed", song.Name)
	require.NotNil(t, song.BPM)
	assert.Equal(t, 128, *song.BPM)

	status, raw = env.call(t, rpc.UpdateSong, rpc.UpdateSongRequest{SongID: a, Updates: []models.FieldUpdate{
		{Field: "duration", Value: json.RawMessage(`0`)},
	}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "duration", rpcError(t, raw).Field)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	env.song(t, "a")

	resp, err := http.Get(env.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.Songs)
}

func dial(t *testing.T, env *testEnv, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame[T any](t *testing.T, conn *websocket.Conn) rpc.Frame[T] {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame rpc.Frame[T]
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestWatchPlaylistSongsPushesChanges(t *testing.T) {
	env := newTestEnv(t)
	p := env.playlist(t, "Mix")
	a := env.song(t, "a")

	conn := dial(t, env, rpc.PlaylistSongsStream(p))
	first := readFrame[[]models.PlaylistSong](t, conn)
	require.Nil(t, first.Error)
	assert.Empty(t, first.Data)

	_, err := env.gw.AddMember(context.Background(), p, a)
	require.NoError(t, err)

	next := readFrame[[]models.PlaylistSong](t, conn)
	require.Nil(t, next.Error)
	require.Len(t, next.Data, 1)
	assert.Equal(t, a, next.Data[0].ID)
	assert.Equal(t, 1, next.Data[0].Position)

	require.Eventually(t, func() bool { return env.registry.Count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWatchMissingPlaylistSendsErrorFrame(t *testing.T) {
	env := newTestEnv(t)

	conn := dial(t, env, rpc.PlaylistSongsStream("missing"))
	frame := readFrame[[]models.PlaylistSong](t, conn)
	require.NotNil(t, frame.Error)
	assert.Equal(t, apperr.CodeNotFound, frame.Error.Code)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))

	require.Eventually(t, func() bool { return env.registry.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestWatchPlaylistsSeesCreate(t *testing.T) {
	env := newTestEnv(t)

	conn := dial(t, env, rpc.PlaylistsStream)
	assert.Empty(t, readFrame[[]models.Playlist](t, conn).Data)

	p := env.playlist(t, "Fresh")
	frame := readFrame[[]models.Playlist](t, conn)
	require.Len(t, frame.Data, 1)
	assert.Equal(t, p, frame.Data[0].ID)
}
