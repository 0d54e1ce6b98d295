package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/quillworksco/quill/pkg/logger"
)

// transcriptExtensions are the file types read as transcripts.
var transcriptExtensions = map[string]struct{}{
	".txt": {},
	".md":  {},
}

// TranscriptStore exposes the local transcript library, laid out as one
// directory per creator containing transcript text files. The store watches
// the directory and picks up transcripts added while the server runs.
type TranscriptStore struct {
	dir     string
	log     *slog.Logger
	watcher *fsnotify.Watcher

	mu       sync.RWMutex
	creators map[string][]string
}

// NewTranscriptStore scans dir and starts watching it for changes. The
// directory is created if missing.
func NewTranscriptStore(dir string, log *slog.Logger) (*TranscriptStore, error) {
	if log == nil {
		log = logger.Nop()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating transcripts dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	s := &TranscriptStore{
		dir:      dir,
		log:      log,
		watcher:  watcher,
		creators: make(map[string][]string),
	}

	if err := s.rescan(); err != nil {
		watcher.Close()
		return nil, err
	}

	go s.watch()

	return s, nil
}

// Creators returns the creator names with at least one transcript, sorted.
func (s *TranscriptStore) Creators() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.creators))
	for name := range s.creators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Transcripts returns all of a creator's transcripts concatenated, each
// preceded by a heading naming its file.
func (s *TranscriptStore) Transcripts(creator string) (string, error) {
	s.mu.RLock()
	files, ok := s.creators[creator]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown creator: %s", creator)
	}

	var out strings.Builder
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(s.dir, creator, name))
		if err != nil {
			// The file may have disappeared since the last scan.
			s.log.Warn("reading transcript failed", "creator", creator, "file", name, "error", err)
			continue
		}

		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		fmt.Fprintf(&out, "## %s\n\n%s", strings.TrimSuffix(name, filepath.Ext(name)),
			strings.TrimSpace(string(data)))
	}

	if out.Len() == 0 {
		return "", fmt.Errorf("no readable transcripts for creator: %s", creator)
	}

	return out.String(), nil
}

// Close stops the directory watcher.
func (s *TranscriptStore) Close() error {
	return s.watcher.Close()
}

// rescan rebuilds the creator index from the directory and refreshes the
// watch list. fsnotify does not watch recursively, so each creator
// subdirectory is added individually.
func (s *TranscriptStore) rescan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading transcripts dir: %w", err)
	}

	creators := make(map[string][]string)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		files, err := os.ReadDir(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.log.Warn("reading creator dir failed", "creator", entry.Name(), "error", err)
			continue
		}

		var names []string
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if _, ok := transcriptExtensions[strings.ToLower(filepath.Ext(f.Name()))]; !ok {
				continue
			}
			names = append(names, f.Name())
		}
		if len(names) > 0 {
			sort.Strings(names)
			creators[entry.Name()] = names
		}
	}

	if err := s.watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watching transcripts dir: %w", err)
	}
	for creator := range creators {
		if err := s.watcher.Add(filepath.Join(s.dir, creator)); err != nil {
			s.log.Warn("watching creator dir failed", "creator", creator, "error", err)
		}
	}

	s.mu.Lock()
	s.creators = creators
	s.mu.Unlock()

	return nil
}

func (s *TranscriptStore) watch() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			if err := s.rescan(); err != nil {
				s.log.Warn("rescanning transcripts failed", "error", err)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("transcript watcher error", "error", err)
		}
	}
}

// ListCreators is the tool exposing the names in the transcript library.
type ListCreators struct {
	store *TranscriptStore
}

// NewListCreators creates the creator listing tool.
func NewListCreators(store *TranscriptStore) *ListCreators {
	return &ListCreators{store: store}
}

func (t *ListCreators) Name() string { return "list_available_creators" }

func (t *ListCreators) Description() string {
	return "List the content creators with transcribed videos available for style reference."
}

func (t *ListCreators) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *ListCreators) Call(_ context.Context, _ map[string]any) (string, error) {
	out, err := json.Marshal(t.store.Creators())
	if err != nil {
		return "", fmt.Errorf("encoding creators: %w", err)
	}
	return string(out), nil
}

// CreatorTranscripts is the tool returning one creator's transcripts.
type CreatorTranscripts struct {
	store *TranscriptStore
}

// NewCreatorTranscripts creates the transcript retrieval tool.
func NewCreatorTranscripts(store *TranscriptStore) *CreatorTranscripts {
	return &CreatorTranscripts{store: store}
}

func (t *CreatorTranscripts) Name() string { return "get_creator_transcriptions" }

func (t *CreatorTranscripts) Description() string {
	return "Get the video transcriptions of one creator, for studying their voice and style."
}

func (t *CreatorTranscripts) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"creator": map[string]any{
				"type":        "string",
				"description": "The creator's name, as returned by list_available_creators.",
			},
		},
		"required": []string{"creator"},
	}
}

func (t *CreatorTranscripts) Call(_ context.Context, args map[string]any) (string, error) {
	creator, _ := args["creator"].(string)
	if creator == "" {
		return "", fmt.Errorf("missing creator argument")
	}
	return t.store.Transcripts(creator)
}
