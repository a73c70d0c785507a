// Package protocol defines the JSON messages exchanged over the room
// WebSocket connection.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client → server message types.
const (
	TypeMove        = "move"
	TypeCastAbility = "castAbility"
	TypeTeleport    = "teleport"
	TypeChat        = "chat"
	TypeQuestUpdate = "questUpdate"
	TypeBuyItem     = "buyItem"
	TypeSellItem    = "sellItem"
	TypeUseItem     = "useItem"
	TypeDropItem    = "dropItem"
	TypeEquipItem   = "equipItem"
	TypeUnequipItem = "unequipItem"
)

// Server → client message types.
const (
	TypeWelcome         = "welcome"
	TypePatch           = "patch"
	TypeServerMessage   = "serverMessage"
	TypeAbilityCast     = "abilityCast"
	TypeCastingStart    = "castingStart"
	TypeCastingCancel   = "castingCancel"
	TypeTeleportConfirm = "teleportConfirm"
)

// BaseMessage carries only the type tag, for first-pass decoding.
type BaseMessage struct {
	Type string `json:"type"`
}

// DecodeBase extracts the type tag from a raw message.
func DecodeBase(data []byte) (BaseMessage, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return base, fmt.Errorf("failed to decode message: %w", err)
	}
	if base.Type == "" {
		return base, fmt.Errorf("message has no type")
	}
	return base, nil
}

// MoveMsg is a client movement input sample.
type MoveMsg struct {
	Type string  `json:"type"`
	H    float64 `json:"h"`
	V    float64 `json:"v"`
	Seq  uint32  `json:"seq"`
}

// CastAbilityMsg requests casting the ability in hotbar slot Digit.
type CastAbilityMsg struct {
	Type     string `json:"type"`
	Digit    int    `json:"digit"`
	TargetID string `json:"targetId,omitempty"`
}

// TeleportMsg requests a move to another location.
type TeleportMsg struct {
	Type        string `json:"type"`
	LocationKey string `json:"locationKey"`
}

// ChatMsg is a room-wide chat line.
type ChatMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// QuestUpdateMsg changes the status of a quest in the player's log.
type QuestUpdateMsg struct {
	Type   string `json:"type"`
	Key    string `json:"key"`
	Status string `json:"status"`
}

// ItemMsg covers the item operations: buy, sell, use, drop, pick up.
type ItemMsg struct {
	Type string `json:"type"`
	Key  string `json:"key"`
	Qty  int    `json:"qty,omitempty"`
}

// EquipMsg equips or unequips an item in a slot.
type EquipMsg struct {
	Type string `json:"type"`
	Key  string `json:"key,omitempty"`
	Slot string `json:"slot"`
}

// WelcomeMsg is the full state snapshot sent once after a successful join.
type WelcomeMsg struct {
	Type        string            `json:"type"`
	SessionID   string            `json:"sessionId"`
	LocationKey string            `json:"locationKey"`
	ServerTime  int64             `json:"serverTime"`
	Entities    []json.RawMessage `json:"entities"`
}

// PatchMsg is the per-tick diff of the replicated state tree.
type PatchMsg struct {
	Type       string      `json:"type"`
	ServerTime int64       `json:"serverTime"`
	Ops        []PatchOp   `json:"ops"`
}

// PatchOp is one add/update/remove against a replicated entity.
type PatchOp struct {
	Op        string         `json:"op"` // "add", "update", "remove"
	SessionID string         `json:"sessionId"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// ServerMessageMsg is a human-readable notification line.
type ServerMessageMsg struct {
	Type    string `json:"type"`
	Kind    string `json:"kind"` // "info", "combat", "loot", "chat"
	Message string `json:"message"`
	Date    int64  `json:"date"`
}

// AbilityCastMsg tells clients an ability resolved, for VFX and animation.
type AbilityCastMsg struct {
	Type     string  `json:"type"`
	Key      string  `json:"key"`
	Digit    int     `json:"digit"`
	FromID   string  `json:"fromId"`
	TargetID string  `json:"targetId"`
	Damage   float64 `json:"damage"`
}

// CastingStartMsg tells the caster's client a wind-up began.
type CastingStartMsg struct {
	Type  string `json:"type"`
	Digit int    `json:"digit"`
}

// CastingCancelMsg tells the caster's client the wind-up was interrupted.
type CastingCancelMsg struct {
	Type string `json:"type"`
}

// TeleportConfirmMsg tells the client to switch rooms.
type TeleportConfirmMsg struct {
	Type        string `json:"type"`
	LocationKey string `json:"locationKey"`
}

// JoinRequest is the handshake payload supplied on connection.
type JoinRequest struct {
	Token       string `json:"token"`
	CharacterID int64  `json:"characterId"`
}
