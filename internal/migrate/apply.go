package migrate

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/boshu2/hookcheck/internal/storage"
)

// BackupTimeFormat is the timestamp layout in backup file names.
const BackupTimeFormat = "20060102T150405Z"

var (
	// ErrNoProjectRoot is returned by Apply when the migrator has no sandbox.
	ErrNoProjectRoot = errors.New("apply requires a project root")

	// ErrStalePlan is returned when the document changed after planning.
	ErrStalePlan = errors.New("document changed since the plan was made")
)

// ApplyResult describes a completed migration write.
type ApplyResult struct {
	Path    string `json:"path" yaml:"path"`
	Backup  string `json:"backup,omitempty" yaml:"backup,omitempty"`
	Changes int    `json:"changes" yaml:"changes"`
	Written bool   `json:"written" yaml:"written"`
}

func atomicWrite(path string, data []byte, perm os.FileMode) error {
	return storage.AtomicWrite(path, data, perm)
}

// BackupPath returns the backup name for path at the migrator's clock.
func (m *Migrator) BackupPath(path string) string {
	return path + m.opts.BackupSuffix + "-" + m.opts.Now().UTC().Format(BackupTimeFormat)
}

// Apply writes plan to disk: a backup of the current document first, then an
// atomic replace. When the replace fails the document is restored from the
// backup. An empty plan writes nothing.
func (m *Migrator) Apply(plan *Plan) (*ApplyResult, error) {
	res := &ApplyResult{Path: plan.Path, Changes: len(plan.Changes)}
	if plan.Empty() {
		return res, nil
	}
	if m.sb == nil {
		return nil, ErrNoProjectRoot
	}
	if err := m.sb.WriteAllowed(plan.Path); err != nil {
		return nil, fmt.Errorf("check write target: %w", err)
	}

	info, err := os.Stat(plan.Path)
	if err != nil {
		return nil, fmt.Errorf("stat document: %w", err)
	}
	current, err := os.ReadFile(plan.Path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if string(current) != plan.Original {
		return nil, ErrStalePlan
	}
	perm := info.Mode().Perm()

	backup := m.BackupPath(plan.Path)
	if err := m.sb.WriteAllowed(backup); err != nil {
		return nil, fmt.Errorf("check backup target: %w", err)
	}
	if err := m.writeFile(backup, current, perm); err != nil {
		return nil, fmt.Errorf("write backup: %w", err)
	}
	res.Backup = backup

	if err := m.writeFile(plan.Path, []byte(plan.Updated), perm); err != nil {
		if rerr := m.restore(backup, plan.Path, perm); rerr != nil {
			return nil, fmt.Errorf("write document: %w; restore from %s: %w", err, backup, rerr)
		}
		return nil, fmt.Errorf("write document (restored from %s): %w", backup, err)
	}
	res.Written = true

	m.log.Info("migration applied",
		zap.String("path", plan.Path),
		zap.String("backup", backup),
		zap.Int("changes", res.Changes))
	return res, nil
}

func (m *Migrator) restore(backup, path string, perm os.FileMode) error {
	data, err := os.ReadFile(backup)
	if err != nil {
		return err
	}
	return atomicWrite(path, data, perm)
}
