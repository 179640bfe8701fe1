// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package ot implements the operation model of the collaborative editor:
// converting character diffs into retain/insert/delete operations, applying
// an operation list to a text, and rebasing one operation list over a
// concurrent one.
//
// Positions are rune offsets into the text the operation list was authored
// against (its base). An operation list as a whole is a plan for
// transforming base into target.
package ot

import (
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/antgroup/coedit/modules/chardiff"
)

// Type tags a single operation.
type Type string

const (
	Retain Type = "retain"
	Insert Type = "insert"
	Delete Type = "delete"
)

// Op is one retain, insert or delete anchored at a position in its base
// content. The JSON form is the wire encoding.
type Op struct {
	Type     Type   `json:"type"`
	Position int    `json:"position"`
	Length   int    `json:"length,omitempty"`
	Text     string `json:"text,omitempty"`
}

func (op Op) String() string {
	switch op.Type {
	case Insert:
		return fmt.Sprintf("insert(%q, %d)", op.Text, op.Position)
	case Delete:
		return fmt.Sprintf("delete(%d, %d)", op.Length, op.Position)
	}
	return fmt.Sprintf("retain(%d, %d)", op.Length, op.Position)
}

// FromDiff converts a character diff into an operation list. The cursor
// names the position in the left (source) string; insertions do not consume
// source characters and therefore do not advance it.
func FromDiff(entries []chardiff.Entry) []Op {
	ops := make([]Op, 0, len(entries))
	p := 0
	for _, e := range entries {
		switch e.Kind {
		case chardiff.Unchanged:
			ops = append(ops, Op{Type: Retain, Position: p, Length: 1})
			p++
		case chardiff.Removed:
			ops = append(ops, Op{Type: Delete, Position: p, Length: 1})
			p++
		case chardiff.Added:
			ops = append(ops, Op{Type: Insert, Position: p, Text: string(e.Char)})
		}
	}
	return ops
}

// Apply executes an operation list against content.
//
// Operations are walked in stable position order with a running offset, the
// length delta incurred by the operations already applied. Retain never
// fails, even past the end of content: it carries no effect, and turning it
// into a conflict would force a client reload for nothing.
func Apply(content string, ops []Op) (string, error) {
	if len(ops) == 0 {
		return content, nil
	}
	doc := []rune(content)
	offset := 0
	for _, op := range sortOps(ops) {
		switch op.Type {
		case Retain:
		case Insert:
			at := op.Position + offset
			if at < 0 || at > len(doc) {
				return "", positionError(op, len(doc))
			}
			doc = slices.Insert(doc, at, []rune(op.Text)...)
			offset += utf8.RuneCountInString(op.Text)
		case Delete:
			at := op.Position + offset
			if at < 0 || op.Length < 0 || at+op.Length > len(doc) {
				return "", positionError(op, len(doc))
			}
			doc = slices.Delete(doc, at, at+op.Length)
			offset -= op.Length
		default:
			return "", fmt.Errorf("ot: unexpected operation type %q", op.Type)
		}
	}
	return string(doc), nil
}

// Transform rebases clientOps over concurrent serverOps. The result is
// intended to be applied to the text serverOps produced, with conflicts at
// equal positions resolved server-wins: concurrent inserts keep the server
// text first, identical deletes collapse into the server's, and a client
// insert at a character the server deleted survives at the deletion point.
//
// Both inputs are reduced to single-character shape first; the tie-breaks
// only hold for the operation shape a character diff produces.
func Transform(clientOps, serverOps []Op) []Op {
	c := expand(clientOps)
	s := expand(serverOps)
	out := make([]Op, 0, len(c))
	offset := 0
	si := 0
	for _, co := range c {
		for si < len(s) && s[si].Position < co.Position {
			offset += lengthDelta(s[si])
			si++
		}
		if si < len(s) && s[si].Position == co.Position {
			so := s[si]
			si++
			if co.Type == Delete && so.Type == Delete {
				// The server already removed this range.
				offset += lengthDelta(so)
				continue
			}
			if so.Type == Delete && co.Type == Insert {
				// The insert anchors at the deletion point, not past it:
				// folding the delete first would push it off the left edge.
				shifted := co
				shifted.Position += offset
				out = append(out, shifted)
				offset += lengthDelta(so)
				continue
			}
			offset += lengthDelta(so)
		}
		shifted := co
		shifted.Position += offset
		out = append(out, shifted)
	}
	return out
}

func lengthDelta(op Op) int {
	switch op.Type {
	case Insert:
		return utf8.RuneCountInString(op.Text)
	case Delete:
		return -op.Length
	}
	return 0
}

// TransformIndex shifts a raw cursor offset through an operation list.
// Movement under remote edits is best effort, not a correctness property.
func TransformIndex(ops []Op, index int) int {
	idx := index
	offset := 0
	for _, op := range sortOps(ops) {
		at := op.Position + offset
		switch op.Type {
		case Insert:
			n := utf8.RuneCountInString(op.Text)
			if at <= idx {
				idx += n
			}
			offset += n
		case Delete:
			if at < idx {
				idx -= min(op.Length, idx-at)
			}
			offset -= op.Length
		}
	}
	if idx < 0 {
		return 0
	}
	return idx
}

func positionError(op Op, docLen int) error {
	return fmt.Errorf("%w: %s against content of %d characters", ErrPositionOutOfRange, op, docLen)
}

func sortOps(ops []Op) []Op {
	sorted := slices.Clone(ops)
	slices.SortStableFunc(sorted, func(a, b Op) int {
		return a.Position - b.Position
	})
	return sorted
}
