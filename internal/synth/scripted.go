package synth

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"
	"unicode"
)

// EngineConfig configures the local scripted engine.
type EngineConfig struct {
	SampleRate     int           // output sample rate, default 22050
	SegmentPace    time.Duration // simulated render time per text segment
	SecondsPerRune float64       // rendered audio length per input rune
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SampleRate:     22050,
		SegmentPace:    200 * time.Millisecond,
		SecondsPerRune: 0.06,
	}
}

// Engine is a deterministic local synthesizer. It renders a tone whose
// length tracks the input text and reports per-segment progress, which
// keeps the service runnable end to end without a speech model.
type Engine struct {
	cfg EngineConfig
}

// NewEngine creates a scripted engine.
func NewEngine(cfg EngineConfig) *Engine {
	def := DefaultEngineConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.SegmentPace < 0 {
		cfg.SegmentPace = def.SegmentPace
	}
	if cfg.SecondsPerRune <= 0 {
		cfg.SecondsPerRune = def.SecondsPerRune
	}
	return &Engine{cfg: cfg}
}

// Info reports the engine configuration.
func (e *Engine) Info() EngineInfo {
	return EngineInfo{
		Name:       "scripted",
		SampleRate: e.cfg.SampleRate,
		Languages:  []string{"zh", "en"},
	}
}

// Synthesize renders req.Text to a WAV file at req.OutputPath.
func (e *Engine) Synthesize(ctx context.Context, req Request, progress ProgressFunc) (Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Result{}, errors.New("empty text")
	}
	if !isSpeakable(req.Text) {
		return Result{}, errors.New("text has no speakable content")
	}
	if req.OutputPath == "" {
		return Result{}, errors.New("no output path")
	}

	segments := segmentText(req.Text)
	for i, seg := range segments {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(e.cfg.SegmentPace):
		}

		if progress != nil {
			frac := float64(i+1) / float64(len(segments))
			progress(frac, fmt.Sprintf("synthesized segment %d/%d: %s", i+1, len(segments), truncate(seg, 32)))
		}
	}

	duration := time.Duration(float64(len([]rune(req.Text))) * e.cfg.SecondsPerRune * float64(time.Second))
	if err := writeWAV(req.OutputPath, e.cfg.SampleRate, duration); err != nil {
		return Result{}, fmt.Errorf("write output: %w", err)
	}

	return Result{
		OutputPath: req.OutputPath,
		AudioURL:   "/outputs/" + req.TaskID + ".wav",
		Duration:   duration,
	}, nil
}

// segmentText splits text on sentence punctuation. Text without any
// punctuation comes back as a single segment.
func segmentText(text string) []string {
	var segments []string
	var b strings.Builder

	for _, r := range text {
		b.WriteRune(r)
		switch r {
		case '.', '!', '?', ';', '\n', '。', '！', '？', '；':
			if s := strings.TrimSpace(b.String()); s != "" {
				segments = append(segments, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		segments = append(segments, s)
	}
	if len(segments) == 0 {
		segments = []string{strings.TrimSpace(text)}
	}
	return segments
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// writeWAV renders a quiet 220Hz tone as 16-bit mono PCM.
func writeWAV(path string, sampleRate int, duration time.Duration) error {
	samples := int(float64(sampleRate) * duration.Seconds())
	if samples < 1 {
		samples = 1
	}
	dataLen := samples * 2

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], 1) // mono
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(header[32:34], 2)
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	if _, err := f.Write(header); err != nil {
		return err
	}

	pcm := make([]byte, dataLen)
	for i := 0; i < samples; i++ {
		v := int16(2000 * math.Sin(2*math.Pi*220*float64(i)/float64(sampleRate)))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	_, err = f.Write(pcm)
	return err
}

// isSpeakable reports whether text contains at least one letter or digit.
func isSpeakable(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
