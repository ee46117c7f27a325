// Package ws is the websocket front end: HELLO/WELCOME handshake, then
// ACT messages dispatched to the land service and answered with RESULT.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"basekeeper.gg/internal/land"
	"basekeeper.gg/internal/protocol"
	"basekeeper.gg/internal/settings"
)

type Server struct {
	svc     *land.Service
	view    func() settings.View
	schemas *protocol.SchemaSet
	log     *log.Logger

	sessions atomic.Uint64
	upgrader websocket.Upgrader
}

func NewServer(svc *land.Service, view func() settings.View, schemas *protocol.SchemaSet, logger *log.Logger) *Server {
	s := &Server{
		svc:     svc,
		view:    view,
		schemas: schemas,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		player, out := s.handshake(conn)
		if player == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeAct {
				continue
			}

			var res protocol.ResultMsg
			if err := s.schemas.ValidateAct(msg); err != nil {
				res = s.result("", false, protocol.ErrProtoBadRequest, err.Error(), nil)
			} else {
				var act protocol.ActMsg
				if err := json.Unmarshal(msg, &act); err != nil {
					res = s.result("", false, protocol.ErrProtoBadRequest, err.Error(), nil)
				} else if act.ProtocolVersion != protocol.Version {
					res = s.result(act.ID, false, protocol.ErrProtoBadRequest, "bad protocol_version", nil)
				} else {
					res = s.dispatch(player, act)
				}
			}

			b, err := json.Marshal(res)
			if err != nil {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (player string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}
	if err := s.schemas.ValidateHello(msg); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}
	player = strings.TrimSpace(hello.PlayerName)
	if player == "" {
		return "", nil
	}

	v := s.view()
	rules := v.Rules()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       fmt.Sprintf("S%d", s.sessions.Add(1)),
		PlayerName:      player,
		Admin:           v.IsAdmin(player),
		Version:         s.svc.Version(),
		Rules: protocol.RulesParams{
			FirstBaseRadiusCap:  rules.FirstBaseRadiusCap,
			OtherBaseRadiusCap:  rules.OtherBaseRadiusCap,
			MinDistBetweenBases: rules.MinDistBetweenBases,
			MinDistFromSpawn:    rules.MinDistFromSpawn,
			MaxBases:            rules.MaxBases,
		},
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", nil
	}
	return player, make(chan []byte, 16)
}

func (s *Server) result(ackFor string, ok bool, code, message string, data any) protocol.ResultMsg {
	return protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		AckFor:          ackFor,
		OK:              ok,
		Code:            code,
		Message:         message,
		Data:            data,
		Version:         s.svc.Version(),
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
