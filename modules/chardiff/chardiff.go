// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package chardiff computes character granular diffs between two texts.
//
// Unlike a hunk oriented differ this package keeps one entry per character,
// which is exactly the granularity the operational transformation layer
// needs: positions in the emitted stream map one to one onto positions in
// the source text.
package chardiff

import (
	"context"
	"strings"
)

// Operation defines the operation of a diff item.
type Operation int8

const (
	// Removed item represents a removed character.
	Removed Operation = -1
	// Added item represents an added character.
	Added Operation = 1
	// Unchanged item represents an equal character.
	Unchanged Operation = 0
)

func (op Operation) String() string {
	switch op {
	case Removed:
		return "removed"
	case Added:
		return "added"
	}
	return "unchanged"
}

// Entry is a single tagged character of a diff.
type Entry struct {
	Kind Operation
	Char rune
}

// Diff computes the longest common subsequence diff of a and b by character.
//
// The unchanged+removed characters reassemble a, the unchanged+added
// characters reassemble b. Both sides of a session compute diffs
// independently, so the reconstruction tie-breaks below are part of the
// wire contract: an added run is preferred over a removed run whenever the
// table allows either, and must stay that way.
func Diff(ctx context.Context, a, b string) ([]Entry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if a == b {
		return nil, nil
	}
	ra, rb := []rune(a), []rune(b)
	n, m := len(ra), len(rb)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if ra[i-1] == rb[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
				continue
			}
			dp[i][j] = max(dp[i-1][j], dp[i][j-1])
		}
	}
	entries := make([]Entry, 0, n+m)
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && ra[i-1] == rb[j-1]:
			entries = append(entries, Entry{Kind: Unchanged, Char: ra[i-1]})
			i--
			j--
		case j > 0 && (i == 0 || dp[i][j-1] >= dp[i-1][j]):
			entries = append(entries, Entry{Kind: Added, Char: rb[j-1]})
			j--
		default:
			entries = append(entries, Entry{Kind: Removed, Char: ra[i-1]})
			i--
		}
	}
	reverse(entries)
	return entries, nil
}

func reverse(entries []Entry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}

// Left reassembles the left input from a diff.
func Left(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		if e.Kind != Added {
			b.WriteRune(e.Char)
		}
	}
	return b.String()
}

// Right reassembles the right input from a diff.
func Right(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		if e.Kind != Removed {
			b.WriteRune(e.Char)
		}
	}
	return b.String()
}
