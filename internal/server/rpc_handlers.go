package server

import (
	"context"
	"net/http"

	"vsnplyr/internal/apperr"
	"vsnplyr/internal/rpc"
	"vsnplyr/pkg/models"

	"github.com/go-chi/chi/v5"
)

// methodHandler serves one RPC method and returns its result
type methodHandler func(r *http.Request) (interface{}, error)

// handle decodes the request body into Req before calling fn
func handle[Req any](fn func(ctx context.Context, req Req) (interface{}, error)) methodHandler {
	return func(r *http.Request) (interface{}, error) {
		var req Req
		if err := decodeRequest(r, &req); err != nil {
			return nil, err
		}
		return fn(r.Context(), req)
	}
}

// handleRPC dispatches POST /rpc/{method}
func (ps *PlaylistServer) handleRPC(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "method")
	method, ok := ps.methods[name]
	if !ok {
		ps.respondWithError(w, r, apperr.Invalid("method", "UNKNOWN_METHOD", "Unknown method "+name))
		return
	}

	result, err := method(r)
	if err != nil {
		ps.respondWithError(w, r, err)
		return
	}
	ps.respondResult(w, result)
}

func (ps *PlaylistServer) methodTable() map[string]methodHandler {
	gw := ps.gw
	return map[string]methodHandler{
		// Memberships
		rpc.AddSongToPlaylist: handle(func(ctx context.Context, req rpc.MemberRequest) (interface{}, error) {
			if err := requireMember(req.PlaylistID, req.SongID); err != nil {
				return nil, err
			}
			return gw.AddMember(ctx, req.PlaylistID, req.SongID)
		}),
		rpc.RemoveSongFromPlaylist: handle(func(ctx context.Context, req rpc.MemberRequest) (interface{}, error) {
			if err := requireMember(req.PlaylistID, req.SongID); err != nil {
				return nil, err
			}
			return nil, gw.RemoveMember(ctx, req.PlaylistID, req.SongID)
		}),
		rpc.RemoveMembership: handle(func(ctx context.Context, req rpc.MembershipRequest) (interface{}, error) {
			if err := requireID("membershipId", req.MembershipID); err != nil {
				return nil, err
			}
			return nil, gw.RemoveMembership(ctx, req.MembershipID)
		}),
		rpc.MoveSongInPlaylist: handle(func(ctx context.Context, req rpc.MoveRequest) (interface{}, error) {
			if err := requireMember(req.PlaylistID, req.SongID); err != nil {
				return nil, err
			}
			return nil, gw.MoveMember(ctx, req.PlaylistID, req.SongID, req.Position)
		}),
		rpc.UpdateSongPositions: handle(func(ctx context.Context, req rpc.ReorderRequest) (interface{}, error) {
			if err := requireID("playlistId", req.PlaylistID); err != nil {
				return nil, err
			}
			return nil, gw.ReorderBatch(ctx, req.PlaylistID, req.Orders)
		}),
		rpc.ClearPlaylist: handle(func(ctx context.Context, req rpc.PlaylistRequest) (interface{}, error) {
			if err := requireID("playlistId", req.PlaylistID); err != nil {
				return nil, err
			}
			return gw.ClearPlaylist(ctx, req.PlaylistID)
		}),
		rpc.DuplicatePlaylistSongs: handle(func(ctx context.Context, req rpc.DuplicateRequest) (interface{}, error) {
			if err := requireID("sourceId", req.SourceID); err != nil {
				return nil, err
			}
			if err := requireID("targetId", req.TargetID); err != nil {
				return nil, err
			}
			return gw.DuplicatePlaylistSongs(ctx, req.SourceID, req.TargetID)
		}),

		// Membership queries
		rpc.GetPlaylistSongs: handle(func(ctx context.Context, req rpc.PlaylistRequest) (interface{}, error) {
			return gw.PlaylistSongs(ctx, req.PlaylistID)
		}),
		rpc.GetPlaylistsContaining: handle(func(ctx context.Context, req rpc.SongRequest) (interface{}, error) {
			return gw.PlaylistsContainingSong(ctx, req.SongID)
		}),
		rpc.IsSongInPlaylist: handle(func(ctx context.Context, req rpc.MemberRequest) (interface{}, error) {
			return gw.IsMember(ctx, req.PlaylistID, req.SongID)
		}),
		rpc.GetPlaylistSongCount: handle(func(ctx context.Context, req rpc.PlaylistRequest) (interface{}, error) {
			return gw.SongCount(ctx, req.PlaylistID)
		}),
		rpc.GetPlaylistDuration: handle(func(ctx context.Context, req rpc.PlaylistRequest) (interface{}, error) {
			return gw.Duration(ctx, req.PlaylistID)
		}),
		rpc.GetPlaylistStats: handle(func(ctx context.Context, req rpc.PlaylistRequest) (interface{}, error) {
			return gw.Stats(ctx, req.PlaylistID)
		}),
		rpc.GetAdjacentSong: handle(func(ctx context.Context, req rpc.AdjacentRequest) (interface{}, error) {
			if !req.Direction.Valid() {
				return nil, apperr.Invalid("direction", "INVALID_DIRECTION", "Direction must be next or prev")
			}
			return gw.AdjacentSong(ctx, req.PlaylistID, req.Position, req.Direction)
		}),

		// Playlists
		rpc.CreatePlaylist: handle(func(ctx context.Context, req models.PlaylistInput) (interface{}, error) {
			return gw.CreatePlaylist(ctx, req)
		}),
		rpc.UpdatePlaylist: handle(func(ctx context.Context, req rpc.UpdatePlaylistRequest) (interface{}, error) {
			if err := requireID("playlistId", req.PlaylistID); err != nil {
				return nil, err
			}
			updates := make([]models.PlaylistUpdate, 0, len(req.Updates))
			for _, fu := range req.Updates {
				u, err := models.DecodePlaylistUpdate(fu)
				if err != nil {
					return nil, err
				}
				updates = append(updates, u)
			}
			return nil, gw.UpdatePlaylist(ctx, req.PlaylistID, updates...)
		}),
		rpc.DeletePlaylist: handle(func(ctx context.Context, req rpc.PlaylistRequest) (interface{}, error) {
			if err := requireID("playlistId", req.PlaylistID); err != nil {
				return nil, err
			}
			return nil, gw.DeletePlaylist(ctx, req.PlaylistID)
		}),
		rpc.GetPlaylist: handle(func(ctx context.Context, req rpc.PlaylistRequest) (interface{}, error) {
			return gw.GetPlaylist(ctx, req.PlaylistID)
		}),
		rpc.GetPlaylists: handle(func(ctx context.Context, _ struct{}) (interface{}, error) {
			return gw.ListPlaylists(ctx)
		}),

		// Songs
		rpc.AddSong: handle(func(ctx context.Context, req models.SongInput) (interface{}, error) {
			return gw.CreateSong(ctx, req)
		}),
		rpc.UpdateSong: handle(func(ctx context.Context, req rpc.UpdateSongRequest) (interface{}, error) {
			if err := requireID("songId", req.SongID); err != nil {
				return nil, err
			}
			updates := make([]models.SongUpdate, 0, len(req.Updates))
			for _, fu := range req.Updates {
				u, err := models.DecodeSongUpdate(fu)
				if err != nil {
					return nil, err
				}
				updates = append(updates, u)
			}
			return gw.UpdateSong(ctx, req.SongID, updates...)
		}),
		rpc.DeleteSong: handle(func(ctx context.Context, req rpc.SongRequest) (interface{}, error) {
			if err := requireID("songId", req.SongID); err != nil {
				return nil, err
			}
			return nil, gw.DeleteSong(ctx, req.SongID)
		}),
		rpc.GetSong: handle(func(ctx context.Context, req rpc.SongRequest) (interface{}, error) {
			return gw.GetSong(ctx, req.SongID)
		}),
		rpc.GetAllSongs: handle(func(ctx context.Context, req models.SongQuery) (interface{}, error) {
			if err := validateLimit(req.Limit); err != nil {
				return nil, err
			}
			return gw.ListSongs(ctx, req)
		}),
		rpc.GetRecentlyAddedSongs: handle(func(ctx context.Context, req rpc.LimitRequest) (interface{}, error) {
			if err := validateLimit(req.Limit); err != nil {
				return nil, err
			}
			return gw.RecentSongs(ctx, req.Limit)
		}),
		rpc.SearchSongs: handle(func(ctx context.Context, req rpc.SearchRequest) (interface{}, error) {
			if err := validateSearchQuery(req.Term); err != nil {
				return nil, err
			}
			if err := validateLimit(req.Limit); err != nil {
				return nil, err
			}
			return gw.SearchSongs(ctx, req.Term, req.Limit)
		}),
		rpc.GetSongsByGenre: handle(func(ctx context.Context, req rpc.GenreRequest) (interface{}, error) {
			if err := validateLimit(req.Limit); err != nil {
				return nil, err
			}
			return gw.SongsByGenre(ctx, req.Genre, req.Limit)
		}),
		rpc.GetSongsByArtist: handle(func(ctx context.Context, req rpc.ArtistRequest) (interface{}, error) {
			if err := validateLimit(req.Limit); err != nil {
				return nil, err
			}
			return gw.SongsByArtist(ctx, req.Artist, req.Limit)
		}),
		rpc.GetSongCount: handle(func(ctx context.Context, _ struct{}) (interface{}, error) {
			return gw.CountSongs(ctx)
		}),
	}
}

func requireMember(playlistID, songID string) error {
	if err := requireID("playlistId", playlistID); err != nil {
		return err
	}
	return requireID("songId", songID)
}
