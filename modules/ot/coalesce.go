// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ot

import "unicode/utf8"

// Coalesce merges adjacent single-character runs for transport: retain and
// delete runs sum their lengths, insert runs at the same anchor concatenate
// their texts. The result is equivalent under Apply.
func Coalesce(ops []Op) []Op {
	if len(ops) == 0 {
		return nil
	}
	out := make([]Op, 0, len(ops))
	cur := ops[0]
	for _, op := range ops[1:] {
		if op.Type == cur.Type {
			switch op.Type {
			case Retain, Delete:
				if op.Position == cur.Position+cur.Length {
					cur.Length += op.Length
					continue
				}
			case Insert:
				if op.Position == cur.Position {
					cur.Text += op.Text
					continue
				}
			}
		}
		out = append(out, cur)
		cur = op
	}
	return append(out, cur)
}

// expand is the inverse shape conversion: every operation becomes a run of
// single-character operations positioned the way a character diff would
// have emitted them. Transform relies on this restricted shape.
func expand(ops []Op) []Op {
	out := make([]Op, 0, len(ops))
	for _, op := range ops {
		switch op.Type {
		case Insert:
			if utf8.RuneCountInString(op.Text) <= 1 {
				out = append(out, op)
				continue
			}
			for _, r := range op.Text {
				out = append(out, Op{Type: Insert, Position: op.Position, Text: string(r)})
			}
		case Retain, Delete:
			if op.Length <= 1 {
				out = append(out, op)
				continue
			}
			for i := 0; i < op.Length; i++ {
				out = append(out, Op{Type: op.Type, Position: op.Position + i, Length: 1})
			}
		default:
			out = append(out, op)
		}
	}
	return out
}
