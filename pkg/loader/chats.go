// Package loader reads chat session files and resolves the active context.
// A character context is a directory of .jsonl chat transcripts; a group
// context is the same directory treated as an opaque list of file names.
package loader

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"chat_timelines/pkg/model"
)

// maxLineBytes bounds a single chat message line. Long roleplay messages
// routinely blow past bufio's default token size.
const maxLineBytes = 8 * 1024 * 1024

// LoadSessions reads every .jsonl chat file in dir concurrently and returns
// a session-name to message-sequence mapping. A directory that cannot be
// read is a data-fetch failure: the error propagates and the caller keeps
// its previous graph. Malformed lines inside a file are skipped.
func LoadSessions(dir string) (map[string][]model.ChatMessage, error) {
	files, err := listChatFiles(dir)
	if err != nil {
		return nil, err
	}

	sessions := make(map[string][]model.ChatMessage, len(files))
	var mu sync.Mutex
	var g errgroup.Group

	for _, file := range files {
		g.Go(func() error {
			msgs, skipped, err := LoadSessionFile(filepath.Join(dir, file))
			if err != nil {
				// One unreadable transcript doesn't sink the build.
				log.Printf("loader: skipping %s: %v", file, err)
				return nil
			}
			if skipped > 0 {
				log.Printf("loader: %s: skipped %d malformed records", file, skipped)
			}
			mu.Lock()
			sessions[SessionName(file)] = msgs
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// LoadSessionFile parses one chat transcript. The first line of a
// transcript is a header record (user/character names, metadata) and is
// not a message; subsequent undecodable or field-less lines are counted
// as skipped.
func LoadSessionFile(path string) ([]model.ChatMessage, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open chat file: %w", err)
	}
	defer f.Close()

	var msgs []model.ChatMessage
	skipped := 0
	first := true

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var msg model.ChatMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			if !first {
				skipped++
			}
			first = false
			continue
		}
		if first {
			first = false
			// Header lines decode but carry no message fields.
			if !msg.Valid() {
				continue
			}
		}
		if !msg.Valid() {
			skipped++
			continue
		}
		msgs = append(msgs, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("scan chat file: %w", err)
	}

	return msgs, skipped, nil
}

// LoadGroupChats returns the chat file names under dir for group mode,
// where each file becomes one opaque node.
func LoadGroupChats(dir string) ([]string, error) {
	files, err := listChatFiles(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for _, file := range files {
		names = append(names, SessionName(file))
	}
	return names, nil
}

// ContextID derives the rebuild-decision token for a chat directory. Two
// invocations over the same directory agree, so unchanged contexts skip
// their rebuild.
func ContextID(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}

// SessionName maps a chat file name to its session identifier.
func SessionName(file string) string {
	return strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
}

func listChatFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read chat dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}
