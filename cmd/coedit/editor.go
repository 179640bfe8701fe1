// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
)

type Edit struct {
	Server string `short:"s" name:"server" help:"Note server base URL" default:"http://127.0.0.1:3000"`
	ID     string `arg:"" name:"id" help:"Note ID to open"`
}

func (c *Edit) Run(globals *Globals) error {
	interactive := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	notify := func(format string, a ...any) {
		fmt.Fprintf(os.Stderr, "* "+format+"\n", a...)
	}
	s := newSession(c.Server, c.ID, func(text string, cursor int) {
		printNote(text)
	})
	defer s.Close()
	go s.run(notify)

	if interactive {
		fmt.Println("commands: <text> append, :r N <text> replace line, :d N delete line, :p print, :q quit")
	}
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		if interactive {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()
		if line == ":q" {
			return nil
		}
		if line == ":p" {
			printNote(s.c.Text())
			continue
		}
		if !s.Online() {
			notify("offline, editing disabled")
			continue
		}
		if err := c.apply(s, line); err != nil {
			notify("%v", err)
		}
	}
}

func (c *Edit) apply(s *session, line string) error {
	text := s.c.Text()
	var next string
	switch {
	case strings.HasPrefix(line, ":d "):
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, ":d ")))
		if err != nil {
			return fmt.Errorf("usage: :d N")
		}
		next, err = deleteLine(text, n)
		if err != nil {
			return err
		}
	case strings.HasPrefix(line, ":r "):
		rest := strings.TrimPrefix(line, ":r ")
		num, replacement, ok := strings.Cut(rest, " ")
		n, err := strconv.Atoi(num)
		if !ok || err != nil {
			return fmt.Errorf("usage: :r N <text>")
		}
		next, err = replaceLine(text, n, replacement)
		if err != nil {
			return err
		}
	default:
		next = appendLine(text, line)
	}
	s.c.SetText(next, len([]rune(next)))
	return nil
}

func printNote(text string) {
	fmt.Println("----")
	fmt.Println(text)
	fmt.Println("----")
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func appendLine(text, line string) string {
	if text == "" {
		return line
	}
	return text + "\n" + line
}

func deleteLine(text string, n int) (string, error) {
	lines := splitLines(text)
	if n < 1 || n > len(lines) {
		return "", fmt.Errorf("no such line %d", n)
	}
	lines = append(lines[:n-1], lines[n:]...)
	return strings.Join(lines, "\n"), nil
}

func replaceLine(text string, n int, replacement string) (string, error) {
	lines := splitLines(text)
	if n < 1 || n > len(lines) {
		return "", fmt.Errorf("no such line %d", n)
	}
	lines[n-1] = replacement
	return strings.Join(lines, "\n"), nil
}
