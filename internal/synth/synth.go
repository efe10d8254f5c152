// Package synth runs speech-synthesis jobs on a worker pool and reports
// their lifecycle back through the task router. The pool never touches
// connection or routing state directly: progress crosses into the
// routing layer only through the bridge, and a client that has vanished
// costs a job nothing but a false return from a send.
package synth

import (
	"context"
	"time"
)

// ProgressFunc reports synthesis progress as a 0.0-1.0 fraction.
type ProgressFunc func(fraction float64, message string)

// Request describes one synthesis job.
type Request struct {
	TaskID     string
	ClientID   string
	Text       string
	VoicePath  string // resolved sample path, may be empty
	OutputPath string // where the rendered audio is written
}

// Result is the outcome of a finished job.
type Result struct {
	OutputPath string
	AudioURL   string
	Duration   time.Duration // rendered audio duration
}

// Synthesizer is the engine contract. Implementations are invoked on a
// pool worker and must honor ctx cancellation between segments.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request, progress ProgressFunc) (Result, error)
}

// EngineInfo describes an engine for informational API surfaces.
type EngineInfo struct {
	Name       string   `json:"name"`
	SampleRate int      `json:"sample_rate"`
	Languages  []string `json:"languages"`
}

// Describer is optionally implemented by engines that can report their
// configuration.
type Describer interface {
	Info() EngineInfo
}
