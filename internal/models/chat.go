package models

import (
	"strings"
	"time"
)

// Chat types reported by the gateway.
const (
	ChatTypeDirect = "chat"
	ChatTypeGroup  = "group"
)

// Chat and contact status values that affect eligibility.
const (
	ChatStatusArchived = "archived"
	ChatStatusBanned   = "banned"
)

// Inbound message types.
const (
	MessageTypeText         = "text"
	MessageTypeListResponse = "list_response"
)

// Message is an inbound chat message as delivered by the gateway webhook.
type Message struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Body       string      `json:"body"`
	FromNumber string      `json:"fromNumber,omitempty"`
	Date       string      `json:"date,omitempty"`
	Quoted     *Quoted     `json:"quoted,omitempty"`
	Chat       Chat        `json:"chat"`
	Meta       MessageMeta `json:"meta"`
}

// Quoted holds the referenced message, including interactive list selections.
type Quoted struct {
	ID         string `json:"id,omitempty"`
	SelectedID string `json:"selectedId,omitempty"`
}

// MessageMeta carries gateway-computed flags about the message.
type MessageMeta struct {
	IsFirstMessage bool `json:"isFirstMessage"`
}

// NormalizedBody returns the text the router should match against: the trimmed body,
// or the selected row id for list responses.
func (m *Message) NormalizedBody() string {
	if m.Type == MessageTypeListResponse && m.Quoted != nil && m.Quoted.SelectedID != "" {
		return m.Quoted.SelectedID
	}
	return strings.TrimSpace(m.Body)
}

// Chat is the conversation an inbound message belongs to.
type Chat struct {
	ID                    string     `json:"id"`
	Type                  string     `json:"type"`
	Owner                 *Owner     `json:"owner,omitempty"`
	Labels                []string   `json:"labels"`
	Status                string     `json:"status,omitempty"`
	WaStatus              string     `json:"waStatus,omitempty"`
	FromNumber            string     `json:"fromNumber,omitempty"`
	Contact               Contact    `json:"contact"`
	LastOutboundMessageAt *time.Time `json:"lastOutboundMessageAt,omitempty"`
}

// IsOwned reports whether a team member already owns the chat.
func (c *Chat) IsOwned() bool {
	return c.Owner != nil && c.Owner.Agent != ""
}

// HasLabel reports whether the chat carries the given label.
func (c *Chat) HasLabel(label string) bool {
	for _, l := range c.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Owner identifies the team member assigned to a chat.
type Owner struct {
	Agent string `json:"agent,omitempty"`
}

// Contact is the end user behind a chat.
type Contact struct {
	Phone    string          `json:"phone"`
	Name     string          `json:"name,omitempty"`
	Metadata []MetadataEntry `json:"metadata,omitempty"`
}

// HasMetadata reports whether the exact key/value pair is already present.
func (c *Contact) HasMetadata(key, value string) bool {
	for _, e := range c.Metadata {
		if e.Key == key && e.Value == value {
			return true
		}
	}
	return false
}

// MetadataEntry is a key/value pair stored on a contact.
type MetadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Member status and availability values.
const (
	MemberStatusActive   = "active"
	AvailabilityModeAuto = "auto"
	MemberRoleAdmin      = "admin"
	MemberRoleSupervisor = "supervisor"
	MemberRoleAgent      = "agent"
)

// Member is a human team member that can own chats.
type Member struct {
	ID           string       `json:"id"`
	DisplayName  string       `json:"displayName,omitempty"`
	Email        string       `json:"email,omitempty"`
	Status       string       `json:"status"`
	Role         string       `json:"role"`
	Availability Availability `json:"availability"`
	LastSeenAt   time.Time    `json:"lastSeenAt"`
}

// Availability describes whether a member accepts chats automatically.
type Availability struct {
	Mode string `json:"mode"`
}

// Label is a chat label defined on the gateway device.
type Label struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// Device is the WhatsApp number connected to the gateway.
type Device struct {
	ID      string        `json:"id"`
	Phone   string        `json:"phone,omitempty"`
	Alias   string        `json:"alias,omitempty"`
	Status  string        `json:"status,omitempty"`
	Session DeviceSession `json:"session"`
	Billing DeviceBilling `json:"billing"`
}

// DeviceSession reports the WhatsApp session state.
type DeviceSession struct {
	Status string `json:"status"`
}

// DeviceBilling reports the plan attached to the device.
type DeviceBilling struct {
	Subscription struct {
		Product string `json:"product"`
	} `json:"subscription"`
}

// Device status values used by bootstrap.
const (
	DeviceStatusOperative  = "operative"
	SessionStatusOnline    = "online"
	ProductInboundOutbound = "io"
)

// Webhook is a registered gateway webhook endpoint.
type Webhook struct {
	ID     string   `json:"id,omitempty"`
	URL    string   `json:"url"`
	Name   string   `json:"name,omitempty"`
	Status string   `json:"status,omitempty"`
	Device string   `json:"device,omitempty"`
	Events []string `json:"events"`
}
