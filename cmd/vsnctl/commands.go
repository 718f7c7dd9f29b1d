package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"vsnplyr/internal/apperr"
	"vsnplyr/internal/client"
	"vsnplyr/pkg/models"

	"github.com/spf13/cobra"
)

func newPlaylistsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlists",
		Short: "List playlists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.remote.ListPlaylists(cmd.Context())
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tNAME\tCREATED")
			for _, p := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, p.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}

	var cover string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *client.Session) error {
				id, err := s.CreatePlaylist(cmd.Context(), models.PlaylistInput{
					Name:     args[0],
					CoverURL: cover,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	create.Flags().StringVar(&cover, "cover", "", "cover image URL")

	rename := &cobra.Command{
		Use:   "rename PLAYLIST NAME",
		Short: "Rename a playlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *client.Session) error {
				return s.UpdatePlaylist(cmd.Context(), args[0], models.SetPlaylistName{Name: args[1]})
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete PLAYLIST",
		Short: "Delete a playlist and its memberships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *client.Session) error {
				return s.DeletePlaylist(cmd.Context(), args[0])
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear PLAYLIST",
		Short: "Remove every song from a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := a.remote.ClearPlaylist(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d songs\n", len(removed))
			return nil
		},
	}

	duplicate := &cobra.Command{
		Use:   "duplicate SOURCE TARGET",
		Short: "Append the songs of SOURCE to TARGET",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			added, err := a.remote.DuplicatePlaylistSongs(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d songs\n", len(added))
			return nil
		},
	}

	stats := &cobra.Command{
		Use:   "stats PLAYLIST",
		Short: "Show track count, duration, genres and artists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.remote.Stats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tracks:   %d\n", st.TrackCount)
			fmt.Fprintf(out, "duration: %s\n", clock(st.TotalDuration))
			fmt.Fprintf(out, "average:  %s\n", clock(int(st.AverageDuration)))
			fmt.Fprintf(out, "genres:   %s\n", strings.Join(st.Genres, ", "))
			fmt.Fprintf(out, "artists:  %s\n", strings.Join(st.Artists, ", "))
			return nil
		},
	}

	cmd.AddCommand(create, rename, del, clearCmd, duplicate, stats)
	return cmd
}

func newSongsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "songs [QUERY]",
		Short: "List songs, or search by name, artist or album",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var songs []models.Song
			var err error
			if len(args) == 1 {
				songs, err = a.remote.SearchSongs(cmd.Context(), args[0], limit)
			} else {
				songs, err = a.remote.ListSongs(cmd.Context(), models.SongQuery{Limit: limit})
			}
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tNAME\tARTIST\tDURATION")
			for _, s := range songs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Artist, clock(s.Duration))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of songs")

	var in models.SongInput
	var bpm int
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a song",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bpm > 0 {
				in.BPM = &bpm
			}
			id, err := a.remote.CreateSong(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	add.Flags().StringVar(&in.Name, "name", "", "song name")
	add.Flags().StringVar(&in.Artist, "artist", "", "artist")
	add.Flags().StringVar(&in.Album, "album", "", "album")
	add.Flags().StringVar(&in.Genre, "genre", "", "genre")
	add.Flags().StringVar(&in.AudioURL, "url", "", "audio URL")
	add.Flags().IntVar(&in.Duration, "duration", 0, "duration in seconds")
	add.Flags().IntVar(&bpm, "bpm", 0, "tempo")

	del := &cobra.Command{
		Use:   "delete SONG",
		Short: "Delete a song, removing it from every playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.remote.DeleteSong(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(add, del)
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show PLAYLIST",
		Short: "Show a playlist's songs in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			songs, err := a.remote.PlaylistSongs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printSequence(cmd.OutOrStdout(), songs)
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add PLAYLIST SONG",
		Short: "Append a song to a playlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *client.Session) error {
				id, err := s.AddMember(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove PLAYLIST SONG",
		Short: "Remove a song from a playlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *client.Session) error {
				return s.RemoveMember(cmd.Context(), args[0], args[1])
			})
		},
	}
}

func newMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move PLAYLIST SONG POSITION",
		Short: "Move a song to a position within the playlist",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[2])
			if err != nil {
				return apperr.Invalid("position", "INVALID_POSITION", "Position must be a number")
			}
			return a.withSession(cmd.Context(), func(s *client.Session) error {
				return s.MoveMember(cmd.Context(), args[0], args[1], position)
			})
		},
	}
}

func newReorderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder PLAYLIST SONG=POSITION...",
		Short: "Assign positions to several songs at once",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			orders, err := parseOrders(args[1:])
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(s *client.Session) error {
				return s.ReorderBatch(cmd.Context(), args[0], orders)
			})
		},
	}
}

// parseOrders reads SONG=POSITION pairs.
func parseOrders(args []string) ([]models.SongOrder, error) {
	orders := make([]models.SongOrder, 0, len(args))
	for _, arg := range args {
		song, pos, ok := strings.Cut(arg, "=")
		if !ok || song == "" {
			return nil, apperr.Invalid("orders", "INVALID_ORDER", fmt.Sprintf("expected SONG=POSITION, got %q", arg))
		}
		position, err := strconv.Atoi(pos)
		if err != nil {
			return nil, apperr.Invalid("orders", "INVALID_ORDER", fmt.Sprintf("invalid position in %q", arg))
		}
		orders = append(orders, models.SongOrder{SongID: song, Position: position})
	}
	return orders, nil
}

func printSequence(out io.Writer, songs []models.PlaylistSong) error {
	w := table(out)
	fmt.Fprintln(w, "POS\tSONG\tNAME\tARTIST\tDURATION")
	for _, s := range songs {
		name := s.Name
		if strings.HasPrefix(s.MembershipID, client.PlaceholderPrefix) {
			name += " (pending)"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", s.Position, s.ID, name, s.Artist, clock(s.Duration))
	}
	return w.Flush()
}

func table(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

// clock formats seconds as m:ss.
func clock(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
