// wsprobe connects to a running voxgate instance and streams its
// messages to the console. With -text it also submits a synthesis
// request and follows the task through start/progress/complete.
// Usage: go run ./cmd/wsprobe -addr localhost:8000 -text "Hello there."
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voxgate/voxgate/internal/protocol"
)

func main() {
	addr := flag.String("addr", "localhost:8000", "gateway host:port")
	clientID := flag.String("client", "", "client id (random when empty)")
	text := flag.String("text", "", "submit a synthesis request with this text")
	voice := flag.String("voice", "", "voice sample id for the synthesis request")
	heartbeat := flag.Duration("heartbeat", 30*time.Second, "heartbeat interval")
	verbose := flag.Bool("verbose", false, "print raw message JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	id := *clientID
	if id == "" {
		id = "probe_" + uuid.New().String()[:8]
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("interrupted")
		cancel()
	}()

	wsURL := url.URL{Scheme: "ws", Host: *addr, Path: "/ws/" + id}
	logger.Info("dialing", "url", wsURL.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		logger.Error("dial failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	done := make(chan struct{})
	go readMessages(conn, logger, *verbose, done)

	// Wait for the connected ack before submitting work
	time.Sleep(200 * time.Millisecond)

	if *text != "" {
		if err := submit(ctx, *addr, id, *text, *voice, logger); err != nil {
			logger.Error("synthesis request failed", "error", err)
			cancel()
		}
	}

	ticker := time.NewTicker(*heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(time.Second))
			select {
			case <-done:
			case <-time.After(2 * time.Second):
			}
			return
		case <-done:
			logger.Info("connection closed by server")
			return
		case <-ticker.C:
			hb := protocol.Message{
				Type:      protocol.TypeHeartbeat,
				Timestamp: float64(time.Now().UnixNano()) / 1e9,
			}
			data, _ := hb.Encode()
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Error("heartbeat write failed", "error", err)
				cancel()
			}
		}
	}
}

func readMessages(conn *websocket.Conn, logger *slog.Logger, verbose bool, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("read error", "error", err)
			}
			return
		}
		msg, err := protocol.Parse(data)
		if err != nil {
			logger.Warn("unparseable message", "raw", string(data))
			continue
		}
		if verbose {
			fmt.Println(string(data))
			continue
		}
		switch msg.Type {
		case protocol.TypeProgress:
			p := 0.0
			if msg.Progress != nil {
				p = *msg.Progress
			}
			logger.Info("progress", "task_id", msg.TaskID, "percent", p, "message", msg.Message)
		case protocol.TypeComplete:
			logger.Info("complete", "task_id", msg.TaskID, "result", msg.Result)
		case protocol.TypeError:
			logger.Error("task error", "task_id", msg.TaskID, "error", msg.Error)
		default:
			logger.Info("message", "type", msg.Type, "client_id", msg.ClientID)
		}
	}
}

func submit(ctx context.Context, addr, clientID, text, voice string, logger *slog.Logger) error {
	body, err := json.Marshal(map[string]string{
		"client_id": clientID,
		"text":      text,
		"voice":     voice,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"http://"+addr+"/api/synthesize", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var ack struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("status %d: %s", resp.StatusCode, ack.Error)
	}

	logger.Info("synthesis queued", "task_id", ack.TaskID)
	return nil
}
