// Package backup writes scheduled snapshots of the stored project set.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	cronv3 "github.com/robfig/cron/v3"

	"codex/internal/logging"
	"codex/internal/store"
)

const (
	filePrefix = "projects-"
	fileSuffix = ".json"
	// stampLayout sorts lexically in time order.
	stampLayout = "20060102-150405.000"

	DefaultSchedule = "@every 30m"
	DefaultKeep     = 10
)

var (
	// ErrNothingToBackup is returned when the store holds no projects yet.
	ErrNothingToBackup = errors.New("no projects stored")
	// ErrSnapshotNotFound is returned by Restore for unknown names.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrInvalidSnapshot is returned by Restore when a snapshot is not a
	// list of project records.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// Options configures a Service.
type Options struct {
	Store    store.Store
	Dir      string
	Schedule string // cron spec or descriptor, e.g. "@every 30m" or "0 */2 * * *"
	Keep     int    // snapshots kept after each run
	Now      func() time.Time
}

// Snapshot describes one backup file.
type Snapshot struct {
	Name string    `json:"name"`
	Path string    `json:"path"`
	Size int64     `json:"size"`
	Time time.Time `json:"time"`
}

// Service takes snapshots on a schedule.
type Service struct {
	opts     Options
	schedule cronv3.Schedule
	cron     *cronv3.Cron
}

var parser = cronv3.NewParser(cronv3.SecondOptional | cronv3.Minute | cronv3.Hour |
	cronv3.Dom | cronv3.Month | cronv3.Dow | cronv3.Descriptor)

// New validates the options. The schedule does not run until Start.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("backup: store is required")
	}
	if opts.Dir == "" {
		return nil, errors.New("backup: directory is required")
	}
	if strings.TrimSpace(opts.Schedule) == "" {
		opts.Schedule = DefaultSchedule
	}
	if opts.Keep <= 0 {
		opts.Keep = DefaultKeep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	schedule, err := parser.Parse(opts.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid backup schedule %q: %w", opts.Schedule, err)
	}
	return &Service{opts: opts, schedule: schedule}, nil
}

// Next returns when the schedule fires after t.
func (s *Service) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Start runs RunOnce on the schedule until Stop.
func (s *Service) Start() {
	if s.cron != nil {
		return
	}
	s.cron = cronv3.New(cronv3.WithParser(parser))
	s.cron.Schedule(s.schedule, cronv3.FuncJob(func() {
		if _, err := s.RunOnce(context.Background()); err != nil && !errors.Is(err, ErrNothingToBackup) {
			logging.BackupError("Scheduled backup failed: %v", err)
		}
	}))
	s.cron.Start()
	logging.Backup("Backups scheduled %s into %s (keeping %d)", s.opts.Schedule, s.opts.Dir, s.opts.Keep)
}

// Stop halts the schedule and waits for a running snapshot to finish or ctx
// to end.
func (s *Service) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	s.cron = nil
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce writes the current project set to a new snapshot file and prunes
// old ones. It returns the snapshot path.
func (s *Service) RunOnce(ctx context.Context) (string, error) {
	timer := logging.StartTimer(logging.CategoryBackup, "RunOnce")
	defer timer.Stop()

	data, err := s.opts.Store.Get(ctx, store.KeyProjects)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNothingToBackup
	}
	if err != nil {
		return "", fmt.Errorf("failed to read projects: %w", err)
	}
	if err := os.MkdirAll(s.opts.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := filePrefix + s.opts.Now().UTC().Format(stampLayout) + fileSuffix
	path := filepath.Join(s.opts.Dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize snapshot: %w", err)
	}
	logging.Backup("Wrote %s (%s)", name, humanize.Bytes(uint64(len(data))))

	if err := s.prune(); err != nil {
		logging.BackupError("Failed to prune snapshots: %v", err)
	}
	return path, nil
}

// List returns the snapshots, newest first.
func (s *Service) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.opts.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}
	var out []Snapshot
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		t, err := time.Parse(stampLayout, stamp)
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Snapshot{Name: name, Path: filepath.Join(s.opts.Dir, name), Size: info.Size(), Time: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

func (s *Service) prune() error {
	snaps, err := s.List()
	if err != nil {
		return err
	}
	for _, snap := range snaps[min(len(snaps), s.opts.Keep):] {
		if err := os.Remove(snap.Path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", snap.Name, err)
		}
		logging.Backup("Pruned %s", snap.Name)
	}
	return nil
}

// Restore writes a snapshot back as the stored project set. The caller is
// expected to reload its project manager afterwards.
func (s *Service) Restore(ctx context.Context, name string) error {
	if name != filepath.Base(name) || !strings.HasPrefix(name, filePrefix) {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	data, err := os.ReadFile(filepath.Join(s.opts.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if err := validateSnapshot(data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidSnapshot, name, err)
	}
	if err := s.opts.Store.Set(ctx, store.KeyProjects, data); err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	logging.Backup("Restored %s", name)
	return nil
}

// validateSnapshot checks that data is a JSON array of objects, the shape
// the project manager loads.
func validateSnapshot(data []byte) error {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		return errors.New("not a JSON array")
	}
	var records []map[string]json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	for i, r := range records {
		if r == nil {
			return fmt.Errorf("record %d is null", i)
		}
	}
	return nil
}
