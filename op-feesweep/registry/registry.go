// Package registry persists the pid of the node left running at the end of a run,
// so that the next run can clean it up before starting its own.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/ethereum/go-ethereum/log"
)

const DefaultFileName = "feesweep-registry.json"

// Entry is the persisted record of a finished run.
type Entry struct {
	RunID     uuid.UUID `json:"runId"`
	NodePid   int       `json:"nodePid"`
	Recorded  time.Time `json:"recorded"`
	Completed bool      `json:"completed"`
}

// Killer terminates a leftover process group.
type Killer func(ctx context.Context, pgid int) error

type Registry struct {
	fs   afero.Fs
	path string
	log  log.Logger
	// RunID identifies the current run in records it writes.
	RunID uuid.UUID
}

func New(logger log.Logger, fs afero.Fs, path string) *Registry {
	return &Registry{
		fs:    fs,
		path:  path,
		log:   logger,
		RunID: uuid.New(),
	}
}

// Load returns the recorded entry, or nil if nothing was recorded.
func (r *Registry) Load() (*Entry, error) {
	data, err := afero.ReadFile(r.fs, r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode registry %s: %w", r.path, err)
	}
	return &e, nil
}

// Record stores the pid of the node this run leaves running.
func (r *Registry) Record(pid int, completed bool) error {
	data, err := json.MarshalIndent(Entry{
		RunID:     r.RunID,
		NodePid:   pid,
		Recorded:  time.Now().UTC(),
		Completed: completed,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := r.fs.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create registry dir: %w", err)
	}
	if err := afero.WriteFile(r.fs, r.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	r.log.Info("Recorded node pid", "pid", pid, "run", r.RunID, "path", r.path)
	return nil
}

// Clear removes the record.
func (r *Registry) Clear() error {
	if err := r.fs.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear registry: %w", err)
	}
	return nil
}

// AdoptLeftover kills the node recorded by an earlier run, if any, and clears the record.
// It returns the pid that was killed, or 0.
func (r *Registry) AdoptLeftover(ctx context.Context, kill Killer) (int, error) {
	e, err := r.Load()
	if err != nil {
		return 0, err
	}
	if e == nil || e.NodePid <= 0 {
		return 0, nil
	}
	r.log.Info("Killing node left by earlier run", "pid", e.NodePid, "run", e.RunID, "recorded", e.Recorded)
	if err := kill(ctx, e.NodePid); err != nil {
		return 0, fmt.Errorf("failed to kill leftover node %d: %w", e.NodePid, err)
	}
	return e.NodePid, r.Clear()
}
