// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/innkeeper/internal/logging"
)

const prefixJob = "job:"

// BadgerStore persists jobs and their results in BadgerDB. Every write
// carries a native TTL equal to the retention, so a job never outlives it.
type BadgerStore struct {
	db        *badger.DB
	retention time.Duration
}

// OpenBadgerStore opens (or creates) a job store at path. An empty path
// opens an in-memory database.
func OpenBadgerStore(path string, retention time.Duration) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", path).
		Dur("retention", retention).
		Msg("Job store opened")
	return &BadgerStore{db: db, retention: retention}, nil
}

func jobKey(id string) []byte {
	return []byte(prefixJob + id)
}

// Create stores a new job.
func (s *BadgerStore) Create(_ context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(jobKey(job.ID)); err == nil {
			return fmt.Errorf("job %s already exists", job.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.SetEntry(s.entry(job.ID, data))
	})
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// Get loads a job.
func (s *BadgerStore) Get(_ context.Context, id string) (*Job, error) {
	var job *Job
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		job, err = readJob(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Update applies fn inside one read-write transaction.
func (s *BadgerStore) Update(_ context.Context, id string, fn func(*Job) error) (*Job, error) {
	var job *Job
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		job, err = readJob(txn, id)
		if err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}
		return txn.SetEntry(s.entry(id, data))
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) entry(id string, data []byte) *badger.Entry {
	e := badger.NewEntry(jobKey(id), data)
	if s.retention > 0 {
		e = e.WithTTL(s.retention)
	}
	return e
}

func readJob(txn *badger.Txn, id string) (*Job, error) {
	item, err := txn.Get(jobKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	var job Job
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &job)
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}
