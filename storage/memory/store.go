// memory based implementation for testing and single-user deployments
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskfolk/agendo/storage"
)

// Store implements storage.Storage using in-memory maps
type Store struct {
	mu        sync.RWMutex
	tasks     map[string]*storage.Task     // key: taskID
	overrides map[string]*storage.Override // key: taskID/date
}

// New creates a new in-memory storage
func New() *Store {
	return &Store{
		tasks:     make(map[string]*storage.Task),
		overrides: make(map[string]*storage.Override),
	}
}

func overrideKey(taskID string, date time.Time) string {
	return fmt.Sprintf("%s/%s", taskID, storage.DateOf(date).Format("2006-01-02"))
}

// Task operations

func (s *Store) GetTask(_ context.Context, ownerID, taskID string) (*storage.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok || task.OwnerID != ownerID {
		return nil, fmt.Errorf("task %q: %w", taskID, storage.ErrNotFound)
	}

	cp := *task
	return &cp, nil
}

func (s *Store) ListTasks(_ context.Context, ownerID string) ([]*storage.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tasks []*storage.Task
	for _, task := range s.tasks {
		if task.OwnerID == ownerID {
			cp := *task
			tasks = append(tasks, &cp)
		}
	}

	return tasks, nil
}

func (s *Store) CreateTask(_ context.Context, task *storage.Task) error {
	if task.ID == "" || task.OwnerID == "" {
		return fmt.Errorf("task id and owner are required: %w", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task %q: %w", task.ID, storage.ErrConflict)
	}

	now := time.Now()
	task.Created = now
	task.Modified = now
	cp := *task
	s.tasks[task.ID] = &cp

	return nil
}

func (s *Store) UpdateTask(_ context.Context, task *storage.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.tasks[task.ID]
	if !exists || existing.OwnerID != task.OwnerID {
		return fmt.Errorf("task %q: %w", task.ID, storage.ErrNotFound)
	}

	task.Created = existing.Created
	task.Modified = time.Now()
	cp := *task
	s.tasks[task.ID] = &cp

	return nil
}

func (s *Store) DeleteTask(_ context.Context, ownerID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.tasks[taskID]
	if !exists || existing.OwnerID != ownerID {
		return fmt.Errorf("task %q: %w", taskID, storage.ErrNotFound)
	}

	delete(s.tasks, taskID)

	// Drop all overrides hanging off this task
	for key, ov := range s.overrides {
		if ov.TaskID == taskID {
			delete(s.overrides, key)
		}
	}

	return nil
}

// Override operations

func (s *Store) GetOverride(_ context.Context, taskID string, date time.Time) (*storage.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ov, ok := s.overrides[overrideKey(taskID, date)]
	if !ok {
		return nil, fmt.Errorf("override %s/%s: %w", taskID, date.Format("2006-01-02"), storage.ErrNotFound)
	}

	cp := *ov
	return &cp, nil
}

func (s *Store) ListOverrides(_ context.Context, taskIDs []string, start, end *time.Time) ([]*storage.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		wanted[id] = true
	}

	var out []*storage.Override
	for _, ov := range s.overrides {
		if !wanted[ov.TaskID] {
			continue
		}
		if start != nil && ov.Date.Before(storage.DateOf(*start)) {
			continue
		}
		if end != nil && ov.Date.After(storage.DateOf(*end)) {
			continue
		}
		cp := *ov
		out = append(out, &cp)
	}

	return out, nil
}

func (s *Store) PutOverride(_ context.Context, ov *storage.Override) error {
	if ov.TaskID == "" {
		return fmt.Errorf("override task id is required: %w", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ov.Date = storage.DateOf(ov.Date)
	key := overrideKey(ov.TaskID, ov.Date)
	now := time.Now()

	if existing, exists := s.overrides[key]; exists {
		ov.ID = existing.ID
		ov.Created = existing.Created
	} else {
		if ov.ID == "" {
			ov.ID = uuid.New().String()
		}
		ov.Created = now
	}
	ov.Modified = now

	cp := *ov
	s.overrides[key] = &cp

	return nil
}

func (s *Store) DeleteOverride(_ context.Context, taskID string, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := overrideKey(taskID, date)
	if _, exists := s.overrides[key]; !exists {
		return fmt.Errorf("override %s/%s: %w", taskID, date.Format("2006-01-02"), storage.ErrNotFound)
	}

	delete(s.overrides, key)
	return nil
}
