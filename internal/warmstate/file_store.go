package warmstate

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// FileStore persists warm state to a single JSON file, writing to a
// temp file in the same directory and renaming over the target so a
// crash mid-write never leaves a partial file in place.
type FileStore struct {
	log  zerolog.Logger
	path string
}

// NewFileStore constructs a file-backed warm-state store at path.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{log: logger.With().Str("component", "warmstate-file").Logger(), path: path}
}

// Load reads the warm state file. A missing file, a parse failure, or a
// state older than maxAge are all treated as "nothing to resume" rather
// than as fatal errors — the caller is expected to start cold.
func (f *FileStore) Load(now time.Time) (*State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		f.log.Warn().Err(err).Msg("warm state: read failed, starting cold")
		return nil, nil
	}

	state, err := unmarshal(data)
	if err != nil {
		f.log.Warn().Err(err).Msg("warm state: parse failed, starting cold")
		return nil, nil
	}

	if isStale(state.Timestamp, now) {
		f.log.Info().Msg("warm state: discarding stale state")
		return nil, nil
	}
	return &state, nil
}

// Save atomically writes the warm state file.
func (f *FileStore) Save(state State) error {
	data, err := marshal(state)
	if err != nil {
		return fmt.Errorf("warmstate: marshal: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".warmstate-*.tmp")
	if err != nil {
		return fmt.Errorf("warmstate: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("warmstate: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("warmstate: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("warmstate: rename temp file: %w", err)
	}
	return nil
}
