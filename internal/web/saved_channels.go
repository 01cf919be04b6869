package web

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	maxSavedChannelLabelLength = 80
	savedChannelsFileName      = "saved_channels.json"
)

type savedChannel struct {
	Handle    string `json:"handle"`
	Label     string `json:"label,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type savedChannelState struct {
	Channels []savedChannel `json:"channels"`
}

// savedChannelStore persists the channel list the UI offers for
// one-click recollection. Writes go through a temp file and rename.
type savedChannelStore struct {
	path string
	mu   sync.Mutex
}

func newSavedChannelStore(path string) *savedChannelStore {
	return &savedChannelStore{path: path}
}

func (s *savedChannelStore) Load() (savedChannelState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadLocked()
}

func (s *savedChannelStore) Add(handle, label string) (savedChannelState, error) {
	handle = normalizeChannelHandle(handle)
	if handle == "" {
		return emptySavedChannelState(), fmt.Errorf("channel handle is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadLocked()
	if err != nil {
		return emptySavedChannelState(), err
	}

	key := strings.ToLower(handle)
	for i, entry := range state.Channels {
		if strings.ToLower(entry.Handle) == key {
			state.Channels[i].Label = normalizeChannelLabel(label)
			if err := s.saveLocked(state); err != nil {
				return emptySavedChannelState(), err
			}
			return cloneSavedChannelState(state), nil
		}
	}

	state.Channels = append(state.Channels, savedChannel{
		Handle:    handle,
		Label:     normalizeChannelLabel(label),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err := s.saveLocked(state); err != nil {
		return emptySavedChannelState(), err
	}
	return cloneSavedChannelState(state), nil
}

func (s *savedChannelStore) Remove(handle string) (savedChannelState, bool, error) {
	key := strings.ToLower(normalizeChannelHandle(handle))
	if key == "" {
		return emptySavedChannelState(), false, fmt.Errorf("channel handle is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadLocked()
	if err != nil {
		return emptySavedChannelState(), false, err
	}

	kept := state.Channels[:0]
	removed := false
	for _, entry := range state.Channels {
		if strings.ToLower(entry.Handle) == key {
			removed = true
			continue
		}
		kept = append(kept, entry)
	}
	if !removed {
		return cloneSavedChannelState(state), false, nil
	}
	state.Channels = kept
	if err := s.saveLocked(state); err != nil {
		return emptySavedChannelState(), false, err
	}
	return cloneSavedChannelState(state), true, nil
}

func (s *savedChannelStore) loadLocked() (savedChannelState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptySavedChannelState(), nil
		}
		return emptySavedChannelState(), fmt.Errorf("reading saved channels: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return emptySavedChannelState(), fmt.Errorf("saved channels file is empty")
	}

	var decoded savedChannelState
	if err := json.Unmarshal(data, &decoded); err != nil {
		return emptySavedChannelState(), fmt.Errorf("parsing saved channels: %w", err)
	}
	return normalizeSavedChannelState(decoded), nil
}

func (s *savedChannelStore) saveLocked(next savedChannelState) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating channel data directory: %w", err)
		}
	}
	encoded, err := json.MarshalIndent(normalizeSavedChannelState(next), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding saved channels: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing saved channels temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("committing saved channels file: %w", err)
	}
	return nil
}

func emptySavedChannelState() savedChannelState {
	return savedChannelState{
		Channels: []savedChannel{},
	}
}

func normalizeSavedChannelState(raw savedChannelState) savedChannelState {
	out := emptySavedChannelState()
	seen := make(map[string]struct{}, len(raw.Channels))

	for _, entry := range raw.Channels {
		handle := normalizeChannelHandle(entry.Handle)
		if handle == "" {
			continue
		}
		key := strings.ToLower(handle)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out.Channels = append(out.Channels, savedChannel{
			Handle:    handle,
			Label:     normalizeChannelLabel(entry.Label),
			CreatedAt: strings.TrimSpace(entry.CreatedAt),
		})
	}
	return out
}

func normalizeChannelHandle(value string) string {
	return strings.TrimPrefix(strings.TrimSpace(value), "@")
}

func normalizeChannelLabel(value string) string {
	normalized := strings.Join(strings.Fields(strings.TrimSpace(value)), " ")
	if len(normalized) > maxSavedChannelLabelLength {
		return normalized[:maxSavedChannelLabelLength]
	}
	return normalized
}

func cloneSavedChannelState(source savedChannelState) savedChannelState {
	return savedChannelState{
		Channels: append([]savedChannel(nil), source.Channels...),
	}
}
