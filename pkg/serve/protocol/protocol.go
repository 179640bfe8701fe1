// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the JSON frames exchanged over a note
// WebSocket. Every frame is {type, payload}.
package protocol

import (
	"encoding/json"

	"github.com/antgroup/coedit/modules/ot"
	"github.com/antgroup/coedit/modules/plumbing"
)

const (
	// client → server
	TypeSync = "sync"
	// server → client
	TypeAck       = "ack"
	TypeUpdate    = "update"
	TypeConflict  = "conflict"
	TypeError     = "error"
	TypeUserCount = "user_count_update"
)

type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type SyncPayload struct {
	BaseHash   plumbing.Hash `json:"base_hash"`
	Operations []ot.Op       `json:"operations"`
}

type AckPayload struct {
	NewHash plumbing.Hash `json:"new_hash"`
}

type UpdatePayload struct {
	LatestHash plumbing.Hash `json:"latest_hash"`
	Operations []ot.Op       `json:"operations"`
}

type MessagePayload struct {
	Message string `json:"message"`
}

type UserCountPayload struct {
	Count int `json:"count"`
}

func newFrame(frameType string, payload any) *Frame {
	raw, err := json.Marshal(payload)
	if err != nil {
		// Payload types above marshal without error by construction.
		panic(err)
	}
	return &Frame{Type: frameType, Payload: raw}
}

func NewSync(baseHash plumbing.Hash, operations []ot.Op) *Frame {
	return newFrame(TypeSync, &SyncPayload{BaseHash: baseHash, Operations: operations})
}

func NewAck(newHash plumbing.Hash) *Frame {
	return newFrame(TypeAck, &AckPayload{NewHash: newHash})
}

func NewUpdate(latestHash plumbing.Hash, operations []ot.Op) *Frame {
	return newFrame(TypeUpdate, &UpdatePayload{LatestHash: latestHash, Operations: operations})
}

func NewConflict(message string) *Frame {
	return newFrame(TypeConflict, &MessagePayload{Message: message})
}

func NewError(message string) *Frame {
	return newFrame(TypeError, &MessagePayload{Message: message})
}

func NewUserCount(count int) *Frame {
	return newFrame(TypeUserCount, &UserCountPayload{Count: count})
}
