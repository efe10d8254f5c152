package synth

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fastEngine() *Engine {
	return NewEngine(EngineConfig{
		SampleRate:     8000,
		SegmentPace:    time.Millisecond,
		SecondsPerRune: 0.001,
	})
}

func TestEngineSynthesize(t *testing.T) {
	out := filepath.Join(t.TempDir(), "t1.wav")

	var fractions []float64
	result, err := fastEngine().Synthesize(context.Background(), Request{
		TaskID:     "t1",
		Text:       "Hello world. How are you? Fine!",
		OutputPath: out,
	}, func(frac float64, msg string) {
		fractions = append(fractions, frac)
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if result.AudioURL != "/outputs/t1.wav" {
		t.Errorf("AudioURL = %q, want /outputs/t1.wav", result.AudioURL)
	}

	// Three sentences, three progress reports ending at 1.0.
	if len(fractions) != 3 {
		t.Fatalf("progress reports = %d, want 3", len(fractions))
	}
	if fractions[len(fractions)-1] != 1.0 {
		t.Errorf("final fraction = %v, want 1.0", fractions[len(fractions)-1])
	}
	for i := 1; i < len(fractions); i++ {
		if fractions[i] < fractions[i-1] {
			t.Errorf("fractions not non-decreasing: %v", fractions)
		}
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatal("output is not a WAV file")
	}
	dataLen := binary.LittleEndian.Uint32(data[40:44])
	if int(dataLen) != len(data)-44 {
		t.Errorf("data chunk length = %d, want %d", dataLen, len(data)-44)
	}
}

func TestEngineRejectsEmptyText(t *testing.T) {
	_, err := fastEngine().Synthesize(context.Background(), Request{
		TaskID:     "t2",
		Text:       "   ",
		OutputPath: filepath.Join(t.TempDir(), "t2.wav"),
	}, nil)
	if err == nil {
		t.Error("Synthesize with blank text = nil, want error")
	}

	_, err = fastEngine().Synthesize(context.Background(), Request{
		TaskID:     "t3",
		Text:       "...!!!",
		OutputPath: filepath.Join(t.TempDir(), "t3.wav"),
	}, nil)
	if err == nil {
		t.Error("Synthesize with unspeakable text = nil, want error")
	}
}

func TestEngineCancellation(t *testing.T) {
	engine := NewEngine(EngineConfig{SegmentPace: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Synthesize(ctx, Request{
		TaskID:     "t4",
		Text:       "one. two. three.",
		OutputPath: filepath.Join(t.TempDir(), "t4.wav"),
	}, nil)
	if err == nil {
		t.Error("Synthesize with canceled context = nil, want error")
	}
}

func TestSegmentText(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"one sentence", 1},
		{"first. second. third.", 3},
		{"mixed! punctuation? here;", 3},
		{"你好。再见！", 2},
	}

	for _, tc := range cases {
		got := segmentText(tc.text)
		if len(got) != tc.want {
			t.Errorf("segmentText(%q) = %d segments %v, want %d", tc.text, len(got), got, tc.want)
		}
	}
}
