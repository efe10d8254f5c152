package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/voxgate/voxgate/internal/connection"
	"github.com/voxgate/voxgate/internal/protocol"
)

// handleWebSocket upgrades the connection, admits it under the client id
// from the path, and runs the inbound read loop until the peer goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")
	if clientID == "" {
		http.Error(w, "client id required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "client_id", clientID, "error", err)
		return
	}

	transport := connection.NewWSTransport(conn, s.sendTimeout)
	adm, err := s.registry.Admit(clientID, transport)
	if err != nil {
		// Admit already closed the transport with a capacity reason.
		return
	}

	s.sendTo(clientID, protocol.NewConnected(clientID))

	s.readLoop(adm, conn)
}

// readLoop consumes inbound messages for one connection. Eviction
// authority stays with the heartbeat monitor; the loop exits only when
// the read side fails.
func (s *Server) readLoop(adm *connection.Admission, conn *websocket.Conn) {
	clientID := adm.ClientID()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read failed", "client_id", clientID, "error", err)
			}
			adm.Release(connection.ReasonNormal)
			return
		}

		msg, err := protocol.Parse(data)
		if err != nil {
			// Malformed payloads get an error reply; the connection
			// stays open.
			s.logger.Debug("malformed message", "client_id", clientID)
			s.sendTo(clientID, protocol.NewMalformedError())
			continue
		}

		switch msg.Type {
		case protocol.TypeHeartbeat:
			s.registry.Heartbeat(clientID)
			s.sendTo(clientID, protocol.NewHeartbeatResponse())

		case protocol.TypePing:
			s.registry.Heartbeat(clientID)
			s.sendTo(clientID, protocol.NewPong(msg.Timestamp))

		case protocol.TypePong, protocol.TypeHeartbeatResponse:
			// Replies to our liveness probe.
			s.registry.Heartbeat(clientID)

		case protocol.TypeStatus:
			stats := s.registry.Stats()
			s.sendTo(clientID, protocol.NewStatus(s.registry.IsConnected(clientID), stats.ActiveConnections))

		default:
			s.logger.Debug("unknown message type ignored",
				"client_id", clientID,
				"type", msg.Type,
			)
		}
	}
}

func (s *Server) sendTo(clientID string, msg protocol.Message) {
	data, err := msg.Encode()
	if err != nil {
		s.logger.Error("encode message failed", "type", msg.Type, "error", err)
		return
	}
	s.registry.Send(clientID, data)
}
