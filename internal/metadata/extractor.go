// Package metadata reads tags and durations from local audio files so
// they can be registered as songs.
package metadata

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"vsnplyr/pkg/models"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

const (
	unknownArtist = "Unknown Artist"

	// FileScheme prefixes the audio URL of songs read from disk.
	FileScheme = "file://"
)

// Extractor handles metadata extraction from audio files
type Extractor struct {
	supportedFormats []string
	logger           *logrus.Logger
}

// NewExtractor creates a new metadata extractor
func NewExtractor(supportedFormats []string, logger *logrus.Logger) *Extractor {
	return &Extractor{
		supportedFormats: supportedFormats,
		logger:           logger,
	}
}

// AudioURL returns the audio URL recorded for a file on disk.
func AudioURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return FileScheme + filepath.ToSlash(abs)
}

// ExtractFromFile builds the song input for an audio file. Files without
// readable tags fall back to their file name. A zero duration is raised
// to one second so the song passes validation.
func (e *Extractor) ExtractFromFile(filePath string) (models.SongInput, error) {
	startTime := time.Now()

	file, err := os.Open(filePath)
	if err != nil {
		return models.SongInput{}, err
	}
	defer file.Close()

	duration, err := e.calculateDuration(filePath)
	if err != nil || duration < 1 {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err,
		}).Warn("Failed to calculate duration, using 1s")
		duration = 1
	}

	in := models.SongInput{
		Name:     fileTitle(filePath),
		Artist:   unknownArtist,
		Duration: duration,
		AudioURL: AudioURL(filePath),
		IsLocal:  true,
	}

	meta, err := tag.ReadFrom(file)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Debug("No readable tags, using filename")
		return in, nil
	}

	if title := strings.TrimSpace(meta.Title()); title != "" {
		in.Name = title
	}
	if artist := strings.TrimSpace(meta.Artist()); artist != "" {
		in.Artist = artist
	}
	in.Album = strings.TrimSpace(meta.Album())
	in.Genre = strings.TrimSpace(meta.Genre())
	in.BPM = bpmOf(meta)

	e.logger.WithFields(logrus.Fields{
		"filePath":       filePath,
		"name":           in.Name,
		"artist":         in.Artist,
		"duration":       in.Duration,
		"processingTime": time.Since(startTime),
	}).Debug("Extracted metadata")

	return in, nil
}

func fileTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// bpmOf reads the tempo from ID3 TBPM or MP4 tmpo.
func bpmOf(meta tag.Metadata) *int {
	raw := meta.Raw()
	for _, key := range []string{"TBPM", "tmpo", "BPM", "bpm"} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		var bpm int
		switch t := v.(type) {
		case int:
			bpm = t
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				continue
			}
			bpm = int(f + 0.5)
		default:
			continue
		}
		if bpm > 0 {
			return &bpm
		}
	}
	return nil
}

// calculateDuration calculates the duration of an audio file in seconds
func (e *Extractor) calculateDuration(filePath string) (int, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return e.durationMP3(filePath)
	case ".flac":
		return durationFLAC(filePath)
	case ".wav":
		return durationWAV(filePath)
	case ".m4a":
		return durationM4A(filePath)
	default:
		return 0, fmt.Errorf("unsupported format: %s", ext)
	}
}

// durationMP3 sums decoded frame durations, estimating from file size
// when no frame decodes.
func (e *Extractor) durationMP3(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := mp3.NewDecoder(f)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 {
				return estimateFromFileSize(f, 192000)
			}
			break
		}
		total += fr.Duration()
		frames++
	}
	return int(total.Seconds() + 0.5), nil
}

// durationFLAC reads STREAMINFO.
func durationFLAC(path string) (int, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		return int(float64(si.NSamples)/float64(si.SampleRate) + 0.5), nil
	}
	return 0, fmt.Errorf("flac stream missing sample info")
}

func durationWAV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	d, err := dec.Duration()
	if err != nil {
		return 0, err
	}
	return int(d.Seconds() + 0.5), nil
}

// durationM4A scans the top-level atoms for moov/mvhd.
func durationM4A(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	head := make([]byte, 8)
	for {
		if _, err := io.ReadFull(f, head); err != nil {
			return 0, err
		}
		size := int64(binary.BigEndian.Uint32(head[0:4]))
		if size < 8 {
			return 0, fmt.Errorf("invalid atom size")
		}
		if string(head[4:8]) != "moov" {
			if _, err := f.Seek(size-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			continue
		}

		for read := int64(0); read < size-8; {
			if _, err := io.ReadFull(f, head); err != nil {
				return 0, err
			}
			subSize := int64(binary.BigEndian.Uint32(head[0:4]))
			if subSize < 8 {
				return 0, fmt.Errorf("invalid sub-atom size")
			}
			if string(head[4:8]) == "mvhd" {
				return readMVHD(f)
			}
			if _, err := f.Seek(subSize-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			read += subSize
		}
		return 0, fmt.Errorf("mvhd atom not found")
	}
}

func readMVHD(r io.ReadSeeker) (int, error) {
	version := make([]byte, 1)
	if _, err := io.ReadFull(r, version); err != nil {
		return 0, err
	}

	// flags then creation and modification times
	skip := int64(3 + 4 + 4)
	if version[0] == 1 {
		skip = 3 + 8 + 8
	}
	if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
		return 0, err
	}

	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	timescale := binary.BigEndian.Uint32(buf)
	if timescale == 0 {
		return 0, fmt.Errorf("invalid timescale")
	}

	var units uint64
	if version[0] == 1 {
		long := make([]byte, 8)
		if _, err := io.ReadFull(r, long); err != nil {
			return 0, err
		}
		units = binary.BigEndian.Uint64(long)
	} else {
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, err
		}
		units = uint64(binary.BigEndian.Uint32(buf))
	}
	return int(float64(units)/float64(timescale) + 0.5), nil
}

func estimateFromFileSize(f *os.File, bitrate int64) (int, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return int((st.Size() * 8) / bitrate), nil
}

// IsAudioFile checks if a file is a supported audio format
func (e *Extractor) IsAudioFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range e.supportedFormats {
		if ext == strings.ToLower(format) {
			return true
		}
	}
	return false
}
