// Package events defines the frames carried on the websocket push channels.
//
// Inbound frames decode into one of the Event implementations below; anything
// else (unknown type, missing required field) is rejected at the boundary so
// handlers never see a partially populated event.
package events

import "github.com/Vasu1712/chatsync/internal/models"

type Type string

const (
	TypeMessage        Type = "message"
	TypeTyping         Type = "typing"
	TypeReadReceipt    Type = "read_receipt"
	TypeNotification   Type = "notification"
	TypePresence       Type = "presence"
	TypeOnlineUsers    Type = "online_users"
	TypeGetOnlineUsers Type = "get_online_users"
)

// Event is a decoded inbound frame.
type Event interface {
	Type() Type
	event()
}

// Message is a chat message broadcast on a conversation channel. TempID holds
// the client_id echo when the server sends one.
type Message struct {
	models.Message
}

type Typing struct {
	UserID   string
	IsTyping bool
}

type ReadReceipt struct {
	UserID    string
	MessageID string
}

type Notification struct {
	models.Notification
}

type Presence struct {
	models.Presence
}

type OnlineUsers struct {
	UserIDs []string
}

func (Message) Type() Type      { return TypeMessage }
func (Typing) Type() Type       { return TypeTyping }
func (ReadReceipt) Type() Type  { return TypeReadReceipt }
func (Notification) Type() Type { return TypeNotification }
func (Presence) Type() Type     { return TypePresence }
func (OnlineUsers) Type() Type  { return TypeOnlineUsers }

func (Message) event()      {}
func (Typing) event()       {}
func (ReadReceipt) event()  {}
func (Notification) event() {}
func (Presence) event()     {}
func (OnlineUsers) event()  {}
