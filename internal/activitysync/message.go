// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package activitysync

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// Storage keys. These are part of the on-disk contract shared by every
// version of idlesync and must never change.
const (
	// KeyLastActivity holds the shared activity timestamp as decimal epoch-ms.
	KeyLastActivity = "idlesync.lastActivity"
	// KeyEvent is the write-only trigger used by the storage transport.
	KeyEvent = "idlesync.event"
)

// Kind is the message type.
type Kind string

const (
	KindActivity Kind = "activity"
	KindLogout   Kind = "logout"
)

// ErrMalformed is returned by Decode for payloads that are not a valid Message.
var ErrMalformed = errors.New("activitysync: malformed message")

// Message is the payload exchanged between tabs.
type Message struct {
	Type      Kind  `json:"type"`
	Timestamp int64 `json:"timestamp"`
	// Source identifies the sending tab.
	Source string `json:"source,omitempty"`
	// ID is unique per message so that two identical messages written to
	// the storage transport still register as a change.
	ID string `json:"id,omitempty"`
}

// Encode serializes m.
func Encode(m Message) ([]byte, error) {
	data, err := sonic.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}

// Decode parses and validates a payload.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := sonic.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch m.Type {
	case KindActivity, KindLogout:
	default:
		return Message{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, m.Type)
	}
	if m.Timestamp < 0 {
		return Message{}, fmt.Errorf("%w: negative timestamp", ErrMalformed)
	}
	return m, nil
}
