// Package chat defines the wire-level event types exchanged between
// customers, agents and the broker, plus the room-naming and timestamp
// conventions shared across the service.
package chat

import (
	"encoding/json"
	"time"
)

// Participant roles.
const (
	RoleClient = "client"
	RoleAgent  = "agent"
	RoleBot    = "bot"
)

// Event names carried in the envelope.
const (
	// Inbound.
	EventClientMessage  = "client_message"
	EventAgentMessage   = "agent_message"
	EventAgentTyping    = "agent_typing"
	EventAgentSetStatus = "agent_set_status"
	// Outbound.
	EventNewMessage  = "new_message"
	EventAgentStatus = "agent_status"
)

// TimestampLayout is the wall-clock format shown to participants.
const TimestampLayout = "2006-01-02 15:04"

// Timestamp renders t in the wire format.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Room names. Every participant joins Room(cid); agents and clients
// additionally join their role-scoped sub-room.
func Room(cid string) string        { return cid }
func AgentsRoom(cid string) string  { return cid + ":agents" }
func ClientsRoom(cid string) string { return cid + ":clients" }

// Envelope is the JSON frame carried over the socket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ClientMessage is the inbound payload of a client_message event.
// Either Message or Image is set.
type ClientMessage struct {
	Message string `json:"message,omitempty"`
	Image   string `json:"image,omitempty"`
}

// AgentMessage is the inbound payload of an agent_message event.
type AgentMessage struct {
	Message    string `json:"message,omitempty"`
	Image      string `json:"image,omitempty"`
	TargetLang string `json:"target_lang,omitempty"`
}

// AgentSetStatus is the inbound payload of an agent_set_status event.
// A missing online field means true.
type AgentSetStatus struct {
	Online *bool `json:"online"`
}

// Wants reports the requested online state, defaulting to true.
func (s AgentSetStatus) Wants() bool {
	if s.Online == nil {
		return true
	}
	return *s.Online
}

// NewMessage is the outbound payload of a new_message event. Field presence
// depends on the sender: customer messages carry Original/ClientZH (and
// SuggestZH for agents), agent messages carry Original/Translated, bot
// takeovers additionally carry BotReply/ReplyZH/ReplyFR. Image messages
// carry only Image.
type NewMessage struct {
	CID        string `json:"cid"`
	From       string `json:"from"`
	Original   string `json:"original,omitempty"`
	ClientZH   string `json:"client_zh,omitempty"`
	Translated string `json:"translated,omitempty"`
	BotReply   bool   `json:"bot_reply,omitempty"`
	ReplyZH    string `json:"reply_zh,omitempty"`
	ReplyFR    string `json:"reply_fr,omitempty"`
	Image      string `json:"image,omitempty"`
	SuggestZH  string `json:"suggest_zh,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// AgentStatus is the outbound payload of an agent_status event.
type AgentStatus struct {
	CID    string `json:"cid"`
	Online bool   `json:"online"`
}
