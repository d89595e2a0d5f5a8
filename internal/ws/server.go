// Package ws exposes the game core over websockets. Each connection is
// authenticated by a player token, bound to one room, and serviced by a
// read loop that maps wire frames onto session operations. Outbound
// traffic flows through the Hub, which the room registry uses as its
// broadcaster.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/thetrev68/american-mahjong-server/internal/auth"
	"github.com/thetrev68/american-mahjong-server/internal/config"
	"github.com/thetrev68/american-mahjong-server/internal/game"
	"github.com/thetrev68/american-mahjong-server/internal/room"
)

// Server wires HTTP routes to the room registry.
type Server struct {
	cfg      config.Config
	registry *room.Registry
	hub      *Hub
	logger   *logrus.Logger
}

// NewServer builds the websocket server and wires the hub into the
// registry as its broadcaster.
func NewServer(cfg config.Config, registry *room.Registry, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	hub := NewHub(logger)
	registry.SetBroadcaster(hub)
	return &Server{cfg: cfg, registry: registry, hub: hub, logger: logger}
}

// RegisterRoutes returns the server's HTTP handler.
func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/auth/guest", s.handleGuestToken)
	mux.HandleFunc("/ws", s.handleWS)
	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"rooms":  s.registry.Len(),
	})
}

// handleGuestToken issues an identity token for an anonymous player.
// Lobby accounts live elsewhere; this is the minimum needed to attach a
// socket to a player id.
func (s *Server) handleGuestToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		PlayerName string `json:"playerName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PlayerName == "" {
		http.Error(w, "playerName required", http.StatusBadRequest)
		return
	}
	playerID, _ := uuid.NewRandom()
	token, err := auth.IssueToken(s.cfg.JWTSecret, playerID, body.PlayerName)
	if err != nil {
		s.logger.WithError(err).Error("failed to issue guest token")
		http.Error(w, "token issuance failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"playerId": playerID.String(),
		"token":    token,
	})
}

// handleWS upgrades the connection, authenticates the player, binds
// them to the requested room, and runs the frame loop until the socket
// drops.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(r.URL.Query().Get("room"))
	if err != nil {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}
	claims, err := auth.VerifyToken(s.cfg.JWTSecret, r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled at the HTTP layer.
	})
	if err != nil {
		s.logger.WithError(err).Warn("websocket accept failed")
		return
	}

	session := s.registry.GetOrCreate(roomID)
	c := newClient(conn, roomID, claims.PlayerID, claims.PlayerName, s.logger)

	// Register before touching the session so reconnect snapshots have a
	// socket to land on.
	s.hub.register(c)

	// A known player gets a reconnect snapshot; anyone else joins fresh.
	if snap, err := session.HandleReconnect(claims.PlayerID); err == nil {
		c.logger.Info("player reconnected")
		s.hub.SendToPlayer(roomID, claims.PlayerID, game.GameEvent{
			Type:  game.EventReconnectResponse,
			State: snap,
		})
	} else if err := session.AddPlayer(claims.PlayerID, claims.PlayerName); err != nil {
		c.logger.WithError(err).Warn("player rejected from room")
		s.hub.unregister(c)
		c.close(err.Error())
		return
	}

	ctx := r.Context()
	go c.writePump(context.Background())

	s.readLoop(ctx, c, session)

	if s.hub.unregister(c) {
		session.HandleDisconnect(claims.PlayerID)
	}
	c.close("connection closed")
}

// readLoop decodes inbound frames and dispatches them until the socket
// closes.
func (s *Server) readLoop(ctx context.Context, c *client, session *game.GameSession) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway &&
				!errors.Is(err, context.Canceled) {
				c.logger.WithError(err).Debug("read loop ended")
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.sendError(c, "malformed frame", err)
			continue
		}
		s.handleFrame(c, session, frame)
	}
}

// handleFrame maps one wire frame onto its session operation. Action
// rejections are reported by the session itself; this layer only
// surfaces decode and operation errors.
func (s *Server) handleFrame(c *client, session *game.GameSession, frame clientFrame) {
	switch frame.Type {
	case frameStartGame:
		var p startGamePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			s.sendError(c, "malformed turn-start-game payload", err)
			return
		}
		first := uuid.Nil
		if p.FirstPlayer != "" {
			id, err := uuid.Parse(p.FirstPlayer)
			if err != nil {
				s.sendError(c, "invalid firstPlayer id", err)
				return
			}
			first = id
		}
		if err := session.StartTurns(first); err != nil {
			s.sendError(c, "could not start turns", err)
		}

	case frameTurnAction:
		var p turnActionPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			s.sendError(c, "malformed turn-action payload", err)
			return
		}
		req, err := decodeActionRequest(p)
		if err != nil {
			s.sendError(c, "malformed action data", err)
			return
		}
		// Validation failures and results are broadcast by the session.
		_, _ = session.HandleTurnAction(c.playerID, req)

	case frameCallResponse:
		var p callResponsePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			s.sendError(c, "malformed call-response payload", err)
			return
		}
		if err := session.HandleCallResponse(c.playerID, p.Response, p.CallType, p.Tiles); err != nil {
			s.sendError(c, "call response rejected", err)
		}

	case frameCharlestonReady:
		var p charlestonReadyPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			s.sendError(c, "malformed charleston payload", err)
			return
		}
		if err := session.HandleCharlestonReady(c.playerID, p.SelectedTiles, p.Phase); err != nil {
			s.sendError(c, "charleston selection rejected", err)
		}

	case frameDeclareMahjong:
		var p declareMahjongPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			s.sendError(c, "malformed declare-mahjong payload", err)
			return
		}
		_, _ = session.HandleTurnAction(c.playerID, game.MahjongAction{
			Hand:      p.WinningHand,
			PatternID: p.SelectedPattern,
			Score:     p.Score,
		})

	case frameWallCheck:
		var p wallCheckPayload
		if len(frame.Payload) > 0 {
			if err := json.Unmarshal(frame.Payload, &p); err != nil {
				s.sendError(c, "malformed wall-check payload", err)
				return
			}
		}
		session.CheckWallExhaustion(p.MinTilesNeeded)

	case framePassOut:
		var p passData
		if len(frame.Payload) > 0 {
			if err := json.Unmarshal(frame.Payload, &p); err != nil {
				s.sendError(c, "malformed pass-out payload", err)
				return
			}
		}
		_, _ = session.HandleTurnAction(c.playerID, game.PassAction{Reason: p.Reason})

	case frameReconnect:
		snap, err := session.HandleReconnect(c.playerID)
		if err != nil {
			session.RecordReconnectAttempt(c.playerID)
			s.sendError(c, "reconnect rejected", err)
			return
		}
		s.hub.SendToPlayer(c.roomID, c.playerID, game.GameEvent{
			Type:  game.EventReconnectResponse,
			State: snap,
		})

	case framePhaseChange:
		var p phaseChangePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			s.sendError(c, "malformed phase-change payload", err)
			return
		}
		if charlestonMarkerBlocks(p.Phase, p.Charleston) {
			s.sendPhaseError(c, session, p.Phase, errors.New("charleston status is not complete"))
			return
		}
		if err := session.TransitionPhase(p.Phase); err != nil {
			s.sendPhaseError(c, session, p.Phase, err)
			return
		}
		switch p.Phase {
		case game.PhaseTileInput:
			if err := session.Deal(); err != nil {
				s.sendError(c, "deal failed", err)
				return
			}
			if err := session.DealDealerTile(); err != nil {
				s.sendError(c, "dealer tile failed", err)
			}
		case game.PhaseCharleston:
			if err := session.BeginCharleston(); err != nil {
				s.sendError(c, "charleston start failed", err)
			}
		}

	case framePhaseRollback:
		if err := session.RollbackPhase(); err != nil {
			s.sendPhaseError(c, session, "", err)
		}

	case frameReadiness:
		var p readinessPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			s.sendError(c, "malformed readiness payload", err)
			return
		}
		if err := session.SetPlayerReadiness(c.playerID, p.Category, p.Ready); err != nil {
			s.sendError(c, "readiness update rejected", err)
		}

	case frameAssignPosition:
		var p assignPositionPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			s.sendError(c, "malformed position payload", err)
			return
		}
		if err := session.AssignPosition(c.playerID, p.Position); err != nil {
			s.sendError(c, "position rejected", err)
		}

	case frameReadinessSummary:
		summary := session.GetReadinessSummary()
		s.hub.SendToPlayer(c.roomID, c.playerID, game.GameEvent{
			Type:    game.EventReadinessUpdate,
			Payload: map[string]interface{}{"summary": summary},
		})

	default:
		s.sendError(c, "unknown frame type: "+frame.Type, nil)
	}
}

// sendError reports a request failure privately to the requester.
func (s *Server) sendError(c *client, msg string, err error) {
	payload := map[string]interface{}{"reason": msg}
	if err != nil {
		payload["detail"] = err.Error()
	}
	s.hub.SendToPlayer(c.roomID, c.playerID, game.GameEvent{
		Type:    game.EventError,
		Payload: payload,
	})
}

// sendPhaseError reports a failed phase transition with the context a
// client needs to recover.
func (s *Server) sendPhaseError(c *client, session *game.GameSession, attempted game.Phase, err error) {
	payload := map[string]interface{}{
		"reason":       err.Error(),
		"currentPhase": session.Phase().Phase,
	}
	if attempted != "" {
		payload["attemptedPhase"] = attempted
	}
	s.hub.SendToPlayer(c.roomID, c.playerID, game.GameEvent{
		Type:    game.EventError,
		Payload: payload,
	})
}
