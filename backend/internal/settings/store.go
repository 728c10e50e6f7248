package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"texvoice/backend/internal/dictionary"
	apperrors "texvoice/backend/pkg/errors"

	"go.uber.org/zap"
)

// Store reads and writes the three settings documents
type Store struct {
	BotPath        string
	AssignmentPath string
	DictionaryPath string

	logger *zap.Logger
	mu     sync.Mutex
}

// Loaded is the content of every document at startup
type Loaded struct {
	Bot          *BotSettings
	Assignments  *Assignments
	Dictionaries []GuildEntries
}

// NewStore creates a store over the given paths
func NewStore(botPath, assignmentPath, dictionaryPath string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		BotPath:        botPath,
		AssignmentPath: assignmentPath,
		DictionaryPath: dictionaryPath,
		logger:         logger,
	}
}

// Load reads all documents. The bot settings document must exist; the
// assignment and dictionary documents start empty when missing. An empty
// file is treated as an empty document.
func (s *Store) Load() (*Loaded, error) {
	out := &Loaded{
		Bot:         &BotSettings{},
		Assignments: NewAssignments(),
	}

	data, err := os.ReadFile(s.BotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read bot settings: %w", err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out.Bot); err != nil {
			return nil, apperrors.NewConfigValidationFailed(s.BotPath, err.Error())
		}
	}

	data, err = readOptional(s.AssignmentPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read speaker assignments: %w", err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out.Assignments); err != nil {
			return nil, apperrors.NewConfigValidationFailed(s.AssignmentPath, err.Error())
		}
	}

	data, err = readOptional(s.DictionaryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary: %w", err)
	}
	out.Dictionaries, err = DecodeDictionary(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewConfigValidationFailed(s.DictionaryPath, err.Error())
	}

	s.logger.Info("Settings loaded",
		zap.Int("guilds", len(out.Bot.GuildIDs)),
		zap.Int("channels", len(out.Bot.ChannelIDs)),
		zap.Int("assignments", out.Assignments.Len()),
		zap.Int("dictionaries", len(out.Dictionaries)))
	return out, nil
}

// DictionarySource yields every guild's rules in registration order
type DictionarySource interface {
	Snapshot() map[string][]dictionary.Entry
}

// SaveAssignments rewrites the assignment document. The document is
// serialized under the store lock, so the last save always carries every
// mutation made before it.
func (s *Store) SaveAssignments(a *Assignments) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.write(s.AssignmentPath, data)
}

// SaveDictionary rewrites the dictionary document from a snapshot taken
// under the store lock
func (s *Store) SaveDictionary(src DictionarySource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	if err := EncodeDictionary(&buf, src.Snapshot()); err != nil {
		return err
	}
	return s.write(s.DictionaryPath, buf.Bytes())
}

// write must be called with s.mu held
func (s *Store) write(path string, data []byte) error {
	if err := writeFileAtomic(path, data); err != nil {
		s.logger.Error("Failed to save settings", zap.String("path", path), zap.Error(err))
		return err
	}
	s.logger.Debug("Settings saved", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// writeFileAtomic writes to a temporary file next to path and renames it
// into place so readers never see a partial document
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
