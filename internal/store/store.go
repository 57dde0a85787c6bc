// Package store keeps run snapshots in a bbolt database so consecutive runs
// can be compared.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/findings"
)

var (
	runsBucket = []byte("runs")
	metaBucket = []byte("meta")
	latestKey  = []byte("latest")
)

// ErrNotFound is returned when a run id is not in the store
var ErrNotFound = errors.New("run not found")

// RunInfo is a lightweight listing entry
type RunInfo struct {
	ID        string
	Timestamp time.Time
	Findings  int
}

// Store is a bbolt-backed run snapshot store
type Store struct {
	db     *bolt.DB
	logger zerolog.Logger
}

// Open opens or creates the database at path
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store dir: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{runsBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores the run and marks it as the latest
func (s *Store) Save(run *findings.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run has no id")
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", run.ID, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(runsBucket).Put([]byte(run.ID), data); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Put(latestKey, []byte(run.ID))
	})
	if err != nil {
		return fmt.Errorf("failed to store run %s: %w", run.ID, err)
	}

	s.logger.Debug().Str("run_id", run.ID).Int("findings", len(run.Findings)).Msg("run saved")
	return nil
}

// Get loads a run by id
func (s *Store) Get(id string) (*findings.Run, error) {
	var run *findings.Run
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(runsBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		run = &findings.Run{}
		return json.Unmarshal(data, run)
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Latest returns the most recently saved run, or nil when the store is empty
func (s *Store) Latest() (*findings.Run, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		id = string(tx.Bucket(metaBucket).Get(latestKey))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	return s.Get(id)
}

// List returns every stored run, oldest first
func (s *Store) List() ([]RunInfo, error) {
	var infos []RunInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(k, v []byte) error {
			var run struct {
				ID        string            `json:"run_id"`
				Timestamp time.Time         `json:"timestamp"`
				Findings  []json.RawMessage `json:"findings"`
			}
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("corrupt run %s: %w", k, err)
			}
			infos = append(infos, RunInfo{ID: run.ID, Timestamp: run.Timestamp, Findings: len(run.Findings)})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].Timestamp.Equal(infos[j].Timestamp) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].Timestamp.Before(infos[j].Timestamp)
	})
	return infos, nil
}
