package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voxgate/voxgate/internal/synth"
	"github.com/voxgate/voxgate/internal/version"
)

// synthesizeRequest is the POST /api/synthesize body.
type synthesizeRequest struct {
	ClientID string `json:"client_id"`
	TaskID   string `json:"task_id"`
	Text     string `json:"text"`
	Voice    string `json:"voice"`
}

// handleSynthesize registers a task for the requesting client and queues
// the job. The caller gets an immediate 202; lifecycle events arrive on
// the client's websocket.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	taskID := req.TaskID
	if taskID == "" {
		taskID = newTaskID()
	}

	var voicePath string
	if req.Voice != "" {
		path, err := s.files.ResolveVoice(req.Voice)
		if err != nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("voice sample %q not found", req.Voice))
			return
		}
		voicePath = path
	}

	s.tasks.Register(taskID, req.ClientID)

	job := synth.Request{
		TaskID:     taskID,
		ClientID:   req.ClientID,
		Text:       req.Text,
		VoicePath:  voicePath,
		OutputPath: s.files.OutputPath(taskID + ".wav"),
	}
	if !s.pool.Submit(job) {
		s.tasks.Unregister(taskID)
		writeError(w, http.StatusServiceUnavailable, "synthesis queue full")
		return
	}

	s.logger.Info("synthesis queued", "task_id", taskID, "client_id", req.ClientID)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id": taskID,
		"status":  "queued",
	})
}

// handleAbandonTask removes a binding without any terminal event.
func (s *Server) handleAbandonTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")

	if !s.tasks.Unregister(taskID) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"task_id": taskID,
		"status":  "abandoned",
	})
}

func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := s.files.ListVoices()
	if err != nil {
		s.logger.Error("list voices failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to scan voice samples")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"voices": voices,
		"count":  len(voices),
	})
}

func (s *Server) handleUploadVoice(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	voice, err := s.files.SaveVoice(header.Filename, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, voice)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	path, err := s.files.SaveUpload(header.Filename, file)
	if err != nil {
		s.logger.Error("save upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

// handleConfig reports the synthesis engine configuration so clients
// can discover capabilities before submitting work.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"engine":  s.pool.EngineInfo(),
		"version": version.Version,
	})
}

// example is one ready-made synthesis prompt for client UIs.
type example struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Text        string   `json:"text"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

var examples = []example{
	{
		ID:          "example_1",
		Title:       "Basic synthesis",
		Text:        "This is a basic speech synthesis example.",
		Description: "Default parameters, single sentence.",
		Tags:        []string{"basic", "en"},
	},
	{
		ID:          "example_2",
		Title:       "Multi-sentence synthesis",
		Text:        "The weather is lovely today. Progress arrives per sentence.",
		Description: "Shows per-segment progress reporting.",
		Tags:        []string{"progress", "en"},
	},
	{
		ID:          "example_3",
		Title:       "Chinese synthesis",
		Text:        "这是一个中文语音合成示例。",
		Description: "Chinese text segmentation.",
		Tags:        []string{"basic", "zh"},
	},
}

func (s *Server) handleExamples(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"examples": examples})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.registry.Stats()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connections": stats,
		"tasks":       s.tasks.TaskCount(),
		"queue_depth": s.pool.QueueDepth(),
		"version":     version.Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.registry.Stats()

	health := struct {
		Status     string                 `json:"status"`
		Components map[string]interface{} `json:"components"`
	}{
		Status: "healthy",
		Components: map[string]interface{}{
			"connections": stats,
			"tasks":       s.tasks.TaskCount(),
			"version":     version.String(),
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// newTaskID mints a task identifier in the task_<hex> shape clients
// already parse.
func newTaskID() string {
	return "task_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
