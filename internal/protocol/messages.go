package protocol

import "encoding/json"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	PlayerName      string     `json:"player_name"`
	Auth            *HelloAuth `json:"auth,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	PlayerName      string      `json:"player_name"`
	Admin           bool        `json:"admin,omitempty"`
	Version         uint64      `json:"version"`
	Rules           RulesParams `json:"rules"`
}

// RulesParams echoes the claim rules in force so clients can render
// menus without asking again.
type RulesParams struct {
	FirstBaseRadiusCap  int `json:"first_base_radius_cap"`
	OtherBaseRadiusCap  int `json:"other_base_radius_cap"`
	MinDistBetweenBases int `json:"min_distance_between_bases"`
	MinDistFromSpawn    int `json:"min_distance_from_spawn"`
	MaxBases            int `json:"max_bases"`
}

// ACT (client -> server): one claim operation. Args are decoded per op
// by the dispatcher.
type ActMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ID              string          `json:"id"`
	Op              string          `json:"op"`
	Args            json.RawMessage `json:"args,omitempty"`
}

// RESULT (server -> client): the answer to one ACT.
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Data            any    `json:"data,omitempty"`
	Version         uint64 `json:"version"`
}

// Operation names accepted in ACT messages.
const (
	OpCreateBase = "create_base"
	OpDeleteBase = "delete_base"
	OpRenameBase = "rename_base"
	OpResizeBase = "resize_base"
	OpMoveBase   = "move_base"
	OpSetFlags   = "set_flags"
	OpAddMate    = "add_mate"
	OpRemoveMate = "remove_mate"
	OpSetRank    = "set_rank"
	OpListBases  = "list_bases"
	OpOwnerAt    = "owner_at"
	OpCanAct     = "can_act"
	OpCheckSpot  = "check_spot"
)
