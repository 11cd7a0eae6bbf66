// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

// Package pins persists the set of package ids the user has pinned.
// Pinned packages are skipped by "upgrade all" and flagged in every view.
package pins

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/wingetpro/wingetpro/internal/adapters/platform"
	"github.com/wingetpro/wingetpro/internal/domain"
)

const (
	lockTimeout    = 2 * time.Second
	lockRetryDelay = 50 * time.Millisecond
)

// ErrLocked is returned when another process holds the pin file lock.
var ErrLocked = errors.New("pin file is locked by another process")

// file is the on-disk layout.
type file struct {
	Pins []string `comment:"Package ids excluded from upgrade all. Managed by wingetpro." multiline:"true" toml:"pins"`
}

// PinSet is a set of package ids.
type PinSet struct {
	ids map[string]struct{}
}

// NewPinSet creates a set holding ids. Blank ids are ignored.
func NewPinSet(ids ...string) *PinSet {
	s := &PinSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}

	return s
}

// Add inserts id and reports whether the set changed.
func (s *PinSet) Add(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}

	if _, ok := s.ids[id]; ok {
		return false
	}

	s.ids[id] = struct{}{}

	return true
}

// Remove deletes id and reports whether the set changed.
func (s *PinSet) Remove(id string) bool {
	if _, ok := s.ids[id]; !ok {
		return false
	}

	delete(s.ids, id)

	return true
}

// Contains reports membership.
func (s *PinSet) Contains(id string) bool {
	_, ok := s.ids[id]

	return ok
}

// IsPinned is Contains under the domain.PinReader name.
func (s *PinSet) IsPinned(id string) bool {
	return s.Contains(id)
}

// Len returns the number of ids.
func (s *PinSet) Len() int {
	return len(s.ids)
}

// IDs returns the ids in ascending order.
func (s *PinSet) IDs() []string {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Store owns the pin set and its file. It is not safe for concurrent use;
// callers serialise access on the control loop.
type Store struct {
	files  *platform.FileManager
	path   string
	lock   *flock.Flock
	set    *PinSet
	logger zerolog.Logger
}

// NewStore creates a store backed by the OS filesystem. Writes take an
// advisory lock on path + ".lock" so two instances cannot interleave.
func NewStore(path string, logger zerolog.Logger) *Store {
	s := NewStoreFs(afero.NewOsFs(), path, logger)
	s.lock = flock.New(path + ".lock")

	return s
}

// NewStoreFs creates a store on fs without cross-process locking.
func NewStoreFs(fsys afero.Fs, path string, logger zerolog.Logger) *Store {
	return &Store{
		files:  platform.NewFileManagerFs(fsys),
		path:   path,
		set:    NewPinSet(),
		logger: logger.With().Str("component", "pins").Logger(),
	}
}

// Path returns the pin file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the pin file into memory. It never fails hard: a missing file
// yields an empty set, and an unreadable or corrupt file yields an empty
// set plus a *domain.StoreError for the caller to report.
func (s *Store) Load() (*PinSet, error) {
	s.set = NewPinSet()

	data, err := s.files.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.set, nil
	}

	if err != nil {
		return s.set, s.loadFailure(err)
	}

	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return s.set, s.loadFailure(fmt.Errorf("parse pin file: %w", err))
	}

	s.set = NewPinSet(f.Pins...)
	s.logger.Debug().Str("path", s.path).Int("pins", s.set.Len()).Msg("pins loaded")

	return s.set, nil
}

func (s *Store) loadFailure(err error) error {
	s.logger.Warn().Err(err).Str("path", s.path).Msg("ignoring unreadable pin file")

	return &domain.StoreError{Kind: domain.KindLoadFailure, Path: s.path, Err: err}
}

// Pin adds id and reports whether membership changed. Call Persist to save.
func (s *Store) Pin(id string) bool {
	return s.set.Add(id)
}

// Unpin removes id and reports whether membership changed.
func (s *Store) Unpin(id string) bool {
	return s.set.Remove(id)
}

// IsPinned reports whether id is pinned.
func (s *Store) IsPinned(id string) bool {
	return s.set.Contains(id)
}

// IDs returns the pinned ids in ascending order.
func (s *Store) IDs() []string {
	return s.set.IDs()
}

// Replace swaps the whole set and returns the previous ids.
func (s *Store) Replace(ids []string) []string {
	previous := s.set.IDs()
	s.set = NewPinSet(ids...)

	return previous
}

// Persist writes the full set atomically. Failures are reported as a
// *domain.StoreError of kind KindPersistFailure; memory is left untouched.
func (s *Store) Persist() error {
	data, err := toml.Marshal(file{Pins: s.set.IDs()})
	if err != nil {
		return s.persistFailure(err)
	}

	if s.lock != nil {
		if err := s.files.EnsureDir(filepath.Dir(s.path)); err != nil {
			return s.persistFailure(err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
		defer cancel()

		locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
		if err != nil || !locked {
			return s.persistFailure(errors.Join(ErrLocked, err))
		}

		defer func() { _ = s.lock.Unlock() }()
	}

	if err := s.files.WriteFileAtomic(s.path, data); err != nil {
		return s.persistFailure(err)
	}

	s.logger.Debug().Str("path", s.path).Int("pins", s.set.Len()).Msg("pins saved")

	return nil
}

func (s *Store) persistFailure(err error) error {
	s.logger.Error().Err(err).Str("path", s.path).Msg("failed to save pins")

	return &domain.StoreError{Kind: domain.KindPersistFailure, Path: s.path, Err: err}
}
