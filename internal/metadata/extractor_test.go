package metadata

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor() *Extractor {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewExtractor([]string{".flac", ".mp3", ".wav", ".m4a"}, logger)
}

// writeWAV writes seconds of silence as 16-bit mono PCM.
func writeWAV(t *testing.T, path string, seconds int) {
	t.Helper()
	const rate = 8000

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           make([]int, rate*seconds),
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func TestExtractFromWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Field Recording.wav")
	writeWAV(t, path, 3)

	in, err := newTestExtractor().ExtractFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "Field Recording", in.Name)
	assert.Equal(t, unknownArtist, in.Artist)
	assert.Equal(t, 3, in.Duration)
	assert.True(t, in.IsLocal)
	assert.True(t, strings.HasPrefix(in.AudioURL, FileScheme))
	assert.True(t, strings.HasSuffix(in.AudioURL, "/Field Recording.wav"))
	assert.NoError(t, in.Validate())
}

func TestExtractFallsBackForUnreadableAudio(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.flac")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0644))

	in, err := newTestExtractor().ExtractFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "broken", in.Name)
	assert.Equal(t, 1, in.Duration)
}

func TestExtractMissingFile(t *testing.T) {
	_, err := newTestExtractor().ExtractFromFile(filepath.Join(t.TempDir(), "gone.mp3"))
	assert.Error(t, err)
}

func TestIsAudioFile(t *testing.T) {
	e := newTestExtractor()
	tests := []struct {
		path string
		want bool
	}{
		{"song.mp3", true},
		{"SONG.FLAC", true},
		{"/a/b/c.wav", true},
		{"cover.jpg", false},
		{"notes", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.IsAudioFile(tt.path), tt.path)
	}
}

func TestAudioURLIsAbsolute(t *testing.T) {
	url := AudioURL("relative/song.mp3")
	assert.True(t, strings.HasPrefix(url, FileScheme+"/"))
	assert.True(t, strings.HasSuffix(url, "relative/song.mp3"))
}
