package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

const corruptSuffix = ".corrupt"

// JSONStore keeps records in a single JSON array file. The file is read on
// every operation, so it stays the single source of truth across processes.
type JSONStore struct {
	path   string
	logger logrus.FieldLogger
	mu     sync.Mutex
}

// OpenJSON opens (or lazily creates) the JSON store at path.
func OpenJSON(path string, logger logrus.FieldLogger) (*JSONStore, error) {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &JSONStore{path: path, logger: logger.WithField("component", "tracker")}

	records := s.load()
	s.logger.Debugf("Opened %s with %d stories", path, len(records))
	return s, nil
}

// Path returns the backing file path.
func (s *JSONStore) Path() string {
	return s.path
}

// load reads the file. A missing file yields an empty list. A corrupt file is
// moved aside to path+".corrupt" and also yields an empty list.
func (s *JSONStore) load() []Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.WithError(err).Warnf("Could not read %s, starting empty", s.path)
		}
		return nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		aside := s.path + corruptSuffix
		if renameErr := os.Rename(s.path, aside); renameErr != nil {
			s.logger.WithError(renameErr).Errorf("Corrupt story file %s could not be moved aside", s.path)
		} else {
			s.logger.WithError(err).Warnf("Corrupt story file moved to %s, starting empty", aside)
		}
		return nil
	}
	return records
}

func (s *JSONStore) save(records []Record) error {
	if records == nil {
		records = []Record{}
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".story_metrics-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(records); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode stories: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write stories: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

func (s *JSONStore) Append(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	stamp(&rec, len(records)+1)
	records = append(records, rec)
	if err := s.save(records); err != nil {
		return Record{}, err
	}

	s.logger.Infof("Story #%d saved to %s", rec.ID, s.path)
	return rec, nil
}

func (s *JSONStore) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

func (s *JSONStore) Get(ctx context.Context, id int) (Record, error) {
	records, err := s.List(ctx)
	if err != nil {
		return Record{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, fmt.Errorf("%w: %d", ErrRecordNotFound, id)
}

func (s *JSONStore) SetLiked(ctx context.Context, id int, liked bool) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	for i := range records {
		if records[i].ID != id {
			continue
		}
		records[i].Liked = &liked
		if err := s.save(records); err != nil {
			return Record{}, err
		}
		return records[i], nil
	}
	return Record{}, fmt.Errorf("%w: %d", ErrRecordNotFound, id)
}

// Close is a no-op; every write is already flushed.
func (s *JSONStore) Close() error {
	return nil
}
