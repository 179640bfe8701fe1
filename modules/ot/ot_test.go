// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ot

import (
	"context"
	"testing"

	"github.com/antgroup/coedit/modules/chardiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diffOps(t *testing.T, a, b string) []Op {
	t.Helper()
	entries, err := chardiff.Diff(context.Background(), a, b)
	require.NoError(t, err)
	return FromDiff(entries)
}

func TestApplyEmpty(t *testing.T) {
	got, err := Apply("hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestDiffOpsRoundTrip(t *testing.T) {
	pairs := [][2]string{
		{"", ""},
		{"", "hello"},
		{"hello", ""},
		{"cat", "cart"},
		{"ab", "aXb"},
		{"hello", "ello!"},
		{"the quick brown fox", "the quick red fox jumps"},
		{"多字节", "多个字节"},
	}
	for _, p := range pairs {
		got, err := Apply(p[0], diffOps(t, p[0], p[1]))
		require.NoError(t, err)
		assert.Equal(t, p[1], got, "round trip %q -> %q", p[0], p[1])
	}
}

// Base "cat", client text "cart": the canonical operation stream and its
// application.
func TestCatCartOps(t *testing.T) {
	ops := diffOps(t, "cat", "cart")
	want := []Op{
		{Type: Retain, Position: 0, Length: 1},
		{Type: Retain, Position: 1, Length: 1},
		{Type: Insert, Position: 2, Text: "r"},
		{Type: Retain, Position: 2, Length: 1},
	}
	assert.Equal(t, want, ops)
	got, err := Apply("cat", ops)
	require.NoError(t, err)
	assert.Equal(t, "cart", got)
}

func TestApplyCoalescedEquivalent(t *testing.T) {
	ops := diffOps(t, "line one\nline two\n", "line 1\nline two\nline three\n")
	compact := Coalesce(ops)
	assert.Less(t, len(compact), len(ops))

	a, err := Apply("line one\nline two\n", ops)
	require.NoError(t, err)
	b, err := Apply("line one\nline two\n", compact)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestApplyRetainPastEnd(t *testing.T) {
	// Retain crossing the end of the base carries no effect and is accepted.
	got, err := Apply("ab", []Op{{Type: Retain, Position: 0, Length: 10}})
	require.NoError(t, err)
	assert.Equal(t, "ab", got)
}

func TestApplyOutOfRange(t *testing.T) {
	_, err := Apply("ab", []Op{{Type: Insert, Position: 5, Text: "x"}})
	assert.ErrorIs(t, err, ErrPositionOutOfRange)

	_, err = Apply("ab", []Op{{Type: Delete, Position: 1, Length: 4}})
	assert.ErrorIs(t, err, ErrPositionOutOfRange)

	_, err = Apply("ab", []Op{{Type: Delete, Position: -1, Length: 1}})
	assert.ErrorIs(t, err, ErrPositionOutOfRange)
}

func TestApplyBoundaries(t *testing.T) {
	got, err := Apply("", []Op{{Type: Insert, Position: 0, Text: "a"}})
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	got, err = Apply("ab", []Op{{Type: Insert, Position: 2, Text: "c"}})
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	got, err = Apply("ab", []Op{{Type: Delete, Position: 0, Length: 2}})
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

// Concurrent inserts at the same position: the server wins the anchor.
func TestTransformConcurrentInserts(t *testing.T) {
	serverOps := diffOps(t, "ab", "aXb")
	clientOps := diffOps(t, "ab", "aYb")
	rebased := Transform(clientOps, serverOps)
	merged, err := Apply("aXb", rebased)
	require.NoError(t, err)
	assert.Equal(t, "aXYb", merged)
}

// Concurrent delete and insert: the insert position shifts left past the
// removed character.
func TestTransformDeleteShiftsInsert(t *testing.T) {
	serverOps := diffOps(t, "hello", "ello")
	clientOps := diffOps(t, "hello", "hello!")
	rebased := Transform(clientOps, serverOps)
	merged, err := Apply("ello", rebased)
	require.NoError(t, err)
	assert.Equal(t, "ello!", merged)

	var inserts []Op
	for _, op := range rebased {
		if op.Type == Insert {
			inserts = append(inserts, op)
		}
	}
	require.Len(t, inserts, 1)
	assert.Equal(t, Op{Type: Insert, Position: 4, Text: "!"}, inserts[0])
}

// Identical deletes against the same base collapse: the rebased list has
// nothing left to do.
func TestTransformDuplicateDelete(t *testing.T) {
	serverOps := diffOps(t, "ab", "b")
	clientOps := diffOps(t, "ab", "b")
	rebased := Transform(clientOps, serverOps)
	merged, err := Apply("b", rebased)
	require.NoError(t, err)
	assert.Equal(t, "b", merged)
	for _, op := range rebased {
		assert.NotEqual(t, Delete, op.Type)
		assert.NotEqual(t, Insert, op.Type)
	}
}

// Client insert at the exact position of a concurrent server delete: the
// insert survives, anchored at the deletion point.
func TestTransformInsertAtDeletedPosition(t *testing.T) {
	serverOps := diffOps(t, "ab", "b")
	clientOps := diffOps(t, "ab", "Xab")
	rebased := Transform(clientOps, serverOps)
	merged, err := Apply("b", rebased)
	require.NoError(t, err)
	assert.Equal(t, "Xb", merged)

	var inserts []Op
	for _, op := range rebased {
		if op.Type == Insert {
			inserts = append(inserts, op)
		}
	}
	require.Len(t, inserts, 1)
	assert.Equal(t, Op{Type: Insert, Position: 0, Text: "X"}, inserts[0])
}

// The mirrored pair: client delete at the exact position of a concurrent
// server insert shifts right past the server's text.
func TestTransformDeleteAtInsertedPosition(t *testing.T) {
	serverOps := diffOps(t, "ab", "Xab")
	clientOps := diffOps(t, "ab", "b")
	rebased := Transform(clientOps, serverOps)
	merged, err := Apply("Xab", rebased)
	require.NoError(t, err)
	assert.Equal(t, "Xb", merged)
}

// Broadcast self-consistency: the delta the server would fan out after a
// merge reproduces the merged content when applied to the server content.
func TestTransformBroadcastDelta(t *testing.T) {
	cases := []struct{ base, client, server string }{
		{"ab", "aYb", "aXb"},
		{"hello", "hello!", "ello"},
		{"shared note", "shared note with tail", "prefixed shared note"},
		{"", "client text", "server text"},
	}
	for _, tc := range cases {
		serverOps := diffOps(t, tc.base, tc.server)
		clientOps := diffOps(t, tc.base, tc.client)
		rebased := Transform(clientOps, serverOps)
		merged, err := Apply(tc.server, rebased)
		require.NoError(t, err, "merge %q/%q/%q", tc.base, tc.client, tc.server)

		delta := diffOps(t, tc.server, merged)
		got, err := Apply(tc.server, delta)
		require.NoError(t, err)
		assert.Equal(t, merged, got)
	}
}

func TestTransformAgainstCoalesced(t *testing.T) {
	// A coalesced in-flight list transforms the same as its expanded form.
	inFlight := Coalesce(diffOps(t, "abc", "abcdef"))
	update := diffOps(t, "abc", "Xabc")
	rebased := Transform(inFlight, update)
	merged, err := Apply("Xabc", rebased)
	require.NoError(t, err)
	assert.Equal(t, "Xabcdef", merged)
}

func TestCoalesceExpandShapes(t *testing.T) {
	ops := diffOps(t, "aaaa", "bbbb")
	compact := Coalesce(ops)
	assert.Equal(t, []Op{
		{Type: Delete, Position: 0, Length: 4},
		{Type: Insert, Position: 4, Text: "bbbb"},
	}, compact)
	assert.Equal(t, ops, expand(compact))
}

func TestTransformIndex(t *testing.T) {
	// Insert before the cursor pushes it right.
	assert.Equal(t, 6, TransformIndex([]Op{{Type: Insert, Position: 0, Text: "x"}}, 5))
	// Insert after the cursor leaves it alone.
	assert.Equal(t, 2, TransformIndex([]Op{{Type: Insert, Position: 4, Text: "x"}}, 2))
	// Delete before the cursor pulls it left.
	assert.Equal(t, 4, TransformIndex([]Op{{Type: Delete, Position: 0, Length: 1}}, 5))
	// Delete across the cursor clamps to the deletion point.
	assert.Equal(t, 1, TransformIndex([]Op{{Type: Delete, Position: 1, Length: 4}}, 3))
	assert.Equal(t, 0, TransformIndex([]Op{{Type: Delete, Position: 0, Length: 3}}, 1))
}
