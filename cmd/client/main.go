// Command client runs one protocol op against a live server and prints
// the RESULT. Handy for poking a deployment without a game client.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"basekeeper.gg/internal/protocol"
)

func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name = flag.String("name", "client", "player name")
		op   = flag.String("op", protocol.OpListBases, "op to run")
		args = flag.String("args", "{}", "op args as JSON")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[client] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	_ = conn.SetReadDeadline(deadline)

	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	logger.Printf("WELCOME session=%s player=%s admin=%v version=%d",
		welcome.SessionID, welcome.PlayerName, welcome.Admin, welcome.Version)

	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		ID:              "A1",
		Op:              strings.TrimSpace(*op),
		Args:            json.RawMessage(*args),
	}
	if err := conn.WriteJSON(act); err != nil {
		logger.Fatalf("send ACT: %v", err)
	}

	for {
		var res protocol.ResultMsg
		if err := conn.ReadJSON(&res); err != nil {
			logger.Fatalf("read RESULT: %v", err)
		}
		if res.AckFor != act.ID {
			continue
		}
		out, _ := json.MarshalIndent(res, "", "  ")
		os.Stdout.Write(append(out, '\n'))
		if !res.OK {
			os.Exit(1)
		}
		return
	}
}
