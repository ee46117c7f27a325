package ws

import (
	"encoding/json"
	"errors"

	"basekeeper.gg/internal/claim"
	"basekeeper.gg/internal/land"
	"basekeeper.gg/internal/policy"
	"basekeeper.gg/internal/protocol"
	"basekeeper.gg/internal/spacing"
)

// baseInfo is the claim shape sent to clients.
type baseInfo struct {
	Owner  string         `json:"owner"`
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	X      int            `json:"x"`
	Y      int            `json:"y"`
	Z      int            `json:"z"`
	Radius int            `json:"radius"`
	Dim    string         `json:"dim"`
	Mates  map[string]int `json:"mates,omitempty"`
}

func infoOf(owner string, c *claim.Claim) baseInfo {
	return baseInfo{
		Owner:  owner,
		ID:     c.ID,
		Name:   c.Name,
		X:      c.X,
		Y:      c.Y,
		Z:      c.Z,
		Radius: c.Radius,
		Dim:    c.Dim,
		Mates:  c.Mates,
	}
}

// codeFor maps service errors onto wire codes.
func codeFor(err error) string {
	switch {
	case errors.Is(err, land.ErrNoPermission):
		return protocol.ErrNoPermission
	case errors.Is(err, land.ErrNotFound):
		return protocol.ErrNotFound
	case errors.Is(err, land.ErrLimitExceeded):
		return protocol.ErrLimit
	case errors.Is(err, land.ErrConflict):
		return protocol.ErrConflict
	case errors.Is(err, land.ErrBadRequest):
		return protocol.ErrBadRequest
	default:
		return protocol.ErrInternal
	}
}

func (s *Server) fail(id string, err error, conflicts []spacing.Conflict) protocol.ResultMsg {
	var data any
	if len(conflicts) > 0 {
		data = map[string]any{"conflicts": conflicts}
	}
	return s.result(id, false, codeFor(err), err.Error(), data)
}

// dispatch runs one validated ACT against the land service. The
// operation's owner argument defaults to the connected player; naming
// someone else only works for admins, which the service enforces.
func (s *Server) dispatch(player string, act protocol.ActMsg) protocol.ResultMsg {
	decode := func(into any) bool {
		if len(act.Args) == 0 {
			return true
		}
		return json.Unmarshal(act.Args, into) == nil
	}
	badArgs := func() protocol.ResultMsg {
		return s.result(act.ID, false, protocol.ErrBadRequest, "bad args for "+act.Op, nil)
	}

	switch act.Op {
	case protocol.OpCreateBase:
		var a struct {
			Owner  string `json:"owner"`
			X      int    `json:"x"`
			Y      int    `json:"y"`
			Z      int    `json:"z"`
			Radius int    `json:"radius"`
			Dim    string `json:"dim"`
		}
		if !decode(&a) {
			return badArgs()
		}
		owner := a.Owner
		if owner == "" {
			owner = player
		}
		c, conflicts, err := s.svc.CreateBase(player, owner, a.X, a.Y, a.Z, a.Radius, a.Dim)
		if err != nil {
			return s.fail(act.ID, err, conflicts)
		}
		return s.result(act.ID, true, "", "", infoOf(owner, c))

	case protocol.OpDeleteBase:
		var a struct {
			Owner string `json:"owner"`
			ID    string `json:"id"`
		}
		if !decode(&a) || a.ID == "" {
			return badArgs()
		}
		owner := a.Owner
		if owner == "" {
			owner = player
		}
		if err := s.svc.DeleteBase(player, owner, a.ID); err != nil {
			return s.fail(act.ID, err, nil)
		}
		return s.result(act.ID, true, "", "", nil)

	case protocol.OpRenameBase:
		var a struct {
			Owner string `json:"owner"`
			ID    string `json:"id"`
			Name  string `json:"name"`
		}
		if !decode(&a) || a.ID == "" {
			return badArgs()
		}
		owner := a.Owner
		if owner == "" {
			owner = player
		}
		if err := s.svc.RenameBase(player, owner, a.ID, a.Name); err != nil {
			return s.fail(act.ID, err, nil)
		}
		return s.result(act.ID, true, "", "", nil)

	case protocol.OpResizeBase:
		var a struct {
			Owner  string `json:"owner"`
			ID     string `json:"id"`
			Radius int    `json:"radius"`
		}
		if !decode(&a) || a.ID == "" {
			return badArgs()
		}
		owner := a.Owner
		if owner == "" {
			owner = player
		}
		conflicts, err := s.svc.ResizeBase(player, owner, a.ID, a.Radius)
		if err != nil {
			return s.fail(act.ID, err, conflicts)
		}
		return s.result(act.ID, true, "", "", nil)

	case protocol.OpMoveBase:
		var a struct {
			Owner string `json:"owner"`
			ID    string `json:"id"`
			X     int    `json:"x"`
			Y     int    `json:"y"`
			Z     int    `json:"z"`
		}
		if !decode(&a) || a.ID == "" {
			return badArgs()
		}
		owner := a.Owner
		if owner == "" {
			owner = player
		}
		conflicts, err := s.svc.MoveBase(player, owner, a.ID, a.X, a.Y, a.Z)
		if err != nil {
			return s.fail(act.ID, err, conflicts)
		}
		return s.result(act.ID, true, "", "", nil)

	case protocol.OpSetFlags:
		var a struct {
			Owner       string `json:"owner"`
			ID          string `json:"id"`
			Build       *bool  `json:"build"`
			Interact    *bool  `json:"interact"`
			KillPassive *bool  `json:"kill_passive"`
		}
		if !decode(&a) || a.ID == "" {
			return badArgs()
		}
		owner := a.Owner
		if owner == "" {
			owner = player
		}
		if err := s.svc.SetFlags(player, owner, a.ID, a.Build, a.Interact, a.KillPassive); err != nil {
			return s.fail(act.ID, err, nil)
		}
		return s.result(act.ID, true, "", "", nil)

	case protocol.OpAddMate, protocol.OpRemoveMate, protocol.OpSetRank:
		var a struct {
			Owner string `json:"owner"`
			ID    string `json:"id"`
			Name  string `json:"name"`
			Rank  int    `json:"rank"`
		}
		if !decode(&a) || a.ID == "" || a.Name == "" {
			return badArgs()
		}
		owner := a.Owner
		if owner == "" {
			owner = player
		}
		var err error
		switch act.Op {
		case protocol.OpAddMate:
			err = s.svc.AddMate(player, owner, a.ID, a.Name, a.Rank)
		case protocol.OpRemoveMate:
			err = s.svc.RemoveMate(player, owner, a.ID, a.Name)
		default:
			err = s.svc.SetRank(player, owner, a.ID, a.Name, a.Rank)
		}
		if err != nil {
			return s.fail(act.ID, err, nil)
		}
		return s.result(act.ID, true, "", "", nil)

	case protocol.OpListBases:
		entries := s.svc.Bases(player)
		infos := make([]baseInfo, 0, len(entries))
		for _, e := range entries {
			infos = append(infos, infoOf(e.Owner, e.Claim))
		}
		return s.result(act.ID, true, "", "", map[string]any{"bases": infos})

	case protocol.OpOwnerAt:
		var a struct {
			X   int    `json:"x"`
			Z   int    `json:"z"`
			Dim string `json:"dim"`
		}
		if !decode(&a) {
			return badArgs()
		}
		owner, c := s.svc.OwnerAt(a.X, a.Z, a.Dim)
		if c == nil {
			return s.result(act.ID, true, "", "", nil)
		}
		return s.result(act.ID, true, "", "", infoOf(owner, c))

	case protocol.OpCanAct:
		var a struct {
			X      int    `json:"x"`
			Y      int    `json:"y"`
			Z      int    `json:"z"`
			Dim    string `json:"dim"`
			Action string `json:"action"`
		}
		if !decode(&a) {
			return badArgs()
		}
		switch policy.Action(a.Action) {
		case policy.ActionBuild, policy.ActionInteract, policy.ActionKillPassive:
		default:
			return badArgs()
		}
		allowed := s.svc.CanAct(player, a.X, a.Y, a.Z, a.Dim, policy.Action(a.Action))
		return s.result(act.ID, true, "", "", map[string]any{"allowed": allowed})

	case protocol.OpCheckSpot:
		var a struct {
			X      int    `json:"x"`
			Z      int    `json:"z"`
			Radius int    `json:"radius"`
			Dim    string `json:"dim"`
		}
		if !decode(&a) {
			return badArgs()
		}
		rep, feasible := s.svc.CheckSpot(player, a.X, a.Z, a.Radius, a.Dim)
		return s.result(act.ID, true, "", "", map[string]any{"report": rep, "feasible_radius": feasible})
	}

	return s.result(act.ID, false, protocol.ErrBadRequest, "unknown op "+act.Op, nil)
}
