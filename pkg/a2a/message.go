// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package a2a defines the message envelope, task, agent card and JSON-RPC
// parameter types exchanged between the coordinator and the agents.
package a2a

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks messages sent by the requester.
	RoleUser Role = "user"
	// RoleAgent marks messages produced by an agent.
	RoleAgent Role = "agent"
)

// PartType tags a message part.
type PartType string

const (
	PartTypeText PartType = "text"
	PartTypeData PartType = "data"
)

// Part is a tagged variant holding either text or a structured data mapping.
// Data is read only once the part is built.
type Part struct {
	Type PartType
	Text string
	Data map[string]any

	// raw is the data object as encoded, so key order survives the hop.
	raw json.RawMessage
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// DataPart builds a data part from a JSON-compatible copy of data. Ordered
// maps and raw JSON values keep their key order on the wire.
func DataPart(data map[string]any) (Part, error) {
	if data == nil {
		data = map[string]any{}
	}
	normalized, err := NormalizeData(data)
	if err != nil {
		return Part{}, fmt.Errorf("data part: %w", err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Part{}, fmt.Errorf("data part: %w", err)
	}
	return Part{Type: PartTypeData, Data: normalized, raw: raw}, nil
}

// MarshalJSON encodes a part with its tag. Text parts always carry the text
// key, empty or not.
func (p Part) MarshalJSON() ([]byte, error) {
	switch p.Type {
	case PartTypeText:
		return json.Marshal(struct {
			Type PartType `json:"type"`
			Text string   `json:"text"`
		}{p.Type, p.Text})
	case PartTypeData:
		data := p.raw
		if len(data) == 0 {
			values := p.Data
			if values == nil {
				values = map[string]any{}
			}
			encoded, err := json.Marshal(values)
			if err != nil {
				return nil, fmt.Errorf("data part: %w", err)
			}
			data = encoded
		}
		return json.Marshal(struct {
			Type PartType        `json:"type"`
			Data json.RawMessage `json:"data"`
		}{p.Type, data})
	default:
		return nil, fmt.Errorf("unknown part type %q", p.Type)
	}
}

// UnmarshalJSON decodes a part and validates its tag.
func (p *Part) UnmarshalJSON(b []byte) error {
	var wire struct {
		Type PartType        `json:"type"`
		Text *string         `json:"text"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	switch wire.Type {
	case PartTypeText:
		if wire.Text == nil {
			return fmt.Errorf("text part without text")
		}
		*p = Part{Type: PartTypeText, Text: *wire.Text}
	case PartTypeData:
		data := map[string]any{}
		var raw json.RawMessage
		trimmed := bytes.TrimSpace(wire.Data)
		if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			if err := json.Unmarshal(trimmed, &data); err != nil {
				return fmt.Errorf("data part: %w", err)
			}
			raw = append(raw, trimmed...)
		}
		*p = Part{Type: PartTypeData, Data: data, raw: raw}
	default:
		return fmt.Errorf("unknown part type %q", wire.Type)
	}
	return nil
}

// Field returns the JSON encoding of one key of a data part, preserving
// nested key order as encoded or received.
func (p Part) Field(key string) (json.RawMessage, bool) {
	if p.Type != PartTypeData {
		return nil, false
	}
	if len(p.raw) > 0 {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(p.raw, &fields); err == nil {
			value, ok := fields[key]
			return value, ok
		}
	}
	value, ok := p.Data[key]
	if !ok {
		return nil, false
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}
	return encoded, true
}

// Message is the envelope exchanged between coordinator and agents.
type Message struct {
	MessageID string `json:"message_id"`
	Role      Role   `json:"role"`
	Parts     []Part `json:"parts"`
}

// NewTextMessage builds a user message with a single text part.
func NewTextMessage(text string) *Message {
	return &Message{
		MessageID: uuid.NewString(),
		Role:      RoleUser,
		Parts:     []Part{TextPart(text)},
	}
}

// NewMessage builds a message with a text part followed by an optional data
// part. The text part is kept even when empty.
func NewMessage(role Role, text string, data map[string]any) (*Message, error) {
	parts := []Part{TextPart(text)}
	if data != nil {
		part, err := DataPart(data)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return &Message{MessageID: uuid.NewString(), Role: role, Parts: parts}, nil
}

// NewAgentMessage builds an agent response. Empty text is omitted.
func NewAgentMessage(text string, data map[string]any) (*Message, error) {
	parts := make([]Part, 0, 2)
	if text != "" {
		parts = append(parts, TextPart(text))
	}
	if data != nil {
		part, err := DataPart(data)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return &Message{MessageID: uuid.NewString(), Role: RoleAgent, Parts: parts}, nil
}

// Text returns the text parts joined by newlines.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	texts := make([]string, 0, len(m.Parts))
	for _, part := range m.Parts {
		if part.Type == PartTypeText {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// DataPart returns the first data part.
func (m *Message) DataPart() (Part, bool) {
	if m == nil {
		return Part{}, false
	}
	for _, part := range m.Parts {
		if part.Type == PartTypeData {
			return part, true
		}
	}
	return Part{}, false
}

// Data returns the first structured payload, or nil.
func (m *Message) Data() map[string]any {
	part, ok := m.DataPart()
	if !ok {
		return nil
	}
	return part.Data
}

// Validate ensures the envelope carries an id, a known role and at least one part.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("message is nil")
	}
	if m.MessageID == "" {
		return fmt.Errorf("message_id is required")
	}
	if m.Role != RoleUser && m.Role != RoleAgent {
		return fmt.Errorf("unknown role %q", m.Role)
	}
	if len(m.Parts) == 0 {
		return fmt.Errorf("message parts are required")
	}
	return nil
}
