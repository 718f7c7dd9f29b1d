package server

import (
	"context"
	"net/http"
	"time"

	"vsnplyr/internal/live"
	"vsnplyr/internal/rpc"
	"vsnplyr/pkg/models"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Subscriptions are read only; any origin may watch.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWatchPlaylists streams the playlist list
func (ps *PlaylistServer) handleWatchPlaylists(w http.ResponseWriter, r *http.Request) {
	serveWatch(ps, w, r, live.ForPlaylists(), ps.gw.ListPlaylists)
}

// handleWatchPlaylistSongs streams one playlist's songs in position order
func (ps *PlaylistServer) handleWatchPlaylistSongs(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "id")
	serveWatch(ps, w, r, live.ForPlaylistSongs(playlistID), func(ctx context.Context) ([]models.PlaylistSong, error) {
		return ps.gw.PlaylistSongs(ctx, playlistID)
	})
}

// serveWatch upgrades the request and pushes a frame with the query result
// on connect and after every matching change. A failed evaluation is sent
// as an error frame and ends the subscription.
func serveWatch[T any](ps *PlaylistServer, w http.ResponseWriter, r *http.Request, match live.Matcher, query live.Query[T]) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ps.logger.WithError(err).WithField("path", r.URL.Path).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	id := ps.registry.Register(r.URL.Path, r.UserAgent(), r.RemoteAddr)
	defer ps.registry.Remove(id)

	logEntry := ps.logger.WithFields(logrus.Fields{
		"subscriber_id": id,
		"path":          r.URL.Path,
	})
	logEntry.Debug("Subscription opened")
	defer logEntry.Debug("Subscription closed")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client sends nothing but control frames; reading detects close.
	go func() {
		defer cancel()
		conn.SetReadLimit(maxMessageSize)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	results := live.Watch(ctx, ps.bus, match, query)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case res, ok := <-results:
			if !ok {
				closeNormally(conn)
				return
			}
			if res.Err != nil {
				body := rpc.ErrorOf(res.Err)
				logEntry.WithError(res.Err).Info("Subscription query failed")
				writeFrame(conn, rpc.Frame[T]{Error: &body})
				closeNormally(conn)
				return
			}
			if err := writeFrame(conn, rpc.Frame[T]{Data: res.Value}); err != nil {
				logEntry.WithError(err).Debug("Subscription write failed")
				return
			}
			ps.registry.Touch(id)

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			closeNormally(conn)
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, frame interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}

func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
