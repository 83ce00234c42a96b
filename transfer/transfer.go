// Package transfer moves the command list in and out of JSON files.
//
// Import is a small state machine: BeginImport waits for a source, Receive
// decodes it into a pending list, and Resolve commits the pending list with
// the chosen merge policy. Nothing touches the repository until Resolve.
package transfer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"quickroot/codec"
	"quickroot/model"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingSource
	StateAwaitingDecision
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingSource:
		return "awaiting source"
	case StateAwaitingDecision:
		return "awaiting decision"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Policy decides how a pending import is merged.
type Policy int

const (
	PolicyAppend Policy = iota + 1
	PolicyOverwrite
)

func (p Policy) String() string {
	switch p {
	case PolicyAppend:
		return "append"
	case PolicyOverwrite:
		return "overwrite"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

var (
	// ErrBusy is returned when an import is started while a decision is pending.
	ErrBusy          = errors.New("an import is waiting for a merge decision")
	ErrNoSource      = errors.New("no import source was requested")
	ErrNoPending     = errors.New("no import is waiting for a merge decision")
	ErrUnknownPolicy = errors.New("unknown merge policy")
)

type NoticeKind int

const (
	NoticeNone NoticeKind = iota
	NoticeSuccess
	NoticeError
)

// Notice is a one-line user-facing message.
type Notice struct {
	Kind NoticeKind
	Text string
}

func success(text string) Notice { return Notice{Kind: NoticeSuccess, Text: text} }
func failure(text string) Notice { return Notice{Kind: NoticeError, Text: text} }

// Repository is the subset of repo.Repository the flow needs.
type Repository interface {
	List() []model.Command
	MergeAppend(imported []model.Command) ([]model.Command, error)
	MergeOverwrite(imported []model.Command) error
}

// WriteFunc writes an export file. os.WriteFile by default.
type WriteFunc func(path string, data []byte) error

// FilenameLayout is the time layout embedded in export filenames.
const FilenameLayout = "20060102_150405"

// ExportFilename returns quickroot_<YYYYMMDD_HHMMSS>.json for t.
func ExportFilename(t time.Time) string {
	return "quickroot_" + t.Format(FilenameLayout) + ".json"
}

type Flow struct {
	repo      Repository
	exportDir string
	write     WriteFunc
	logger    *slog.Logger

	mu      sync.Mutex
	state   State
	pending []model.Command
}

type Option func(*Flow)

func WithWriter(w WriteFunc) Option {
	return func(f *Flow) { f.write = w }
}

// New returns a flow exporting into <exportDir>/quickroot.
func New(repo Repository, exportDir string, logger *slog.Logger, opts ...Option) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Flow{
		repo:      repo,
		exportDir: exportDir,
		logger:    logger,
		write: func(path string, data []byte) error {
			return os.WriteFile(path, data, 0644)
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Pending returns a copy of the decoded list awaiting a decision.
func (f *Flow) Pending() []model.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Command, len(f.pending))
	copy(out, f.pending)
	return out
}

// BeginImport moves to AwaitingSource.
func (f *Flow) BeginImport() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateAwaitingDecision {
		return ErrBusy
	}
	f.state = StateAwaitingSource
	return nil
}

// Cancel abandons any import in progress, discarding a pending list.
func (f *Flow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateIdle {
		f.logger.Debug("import cancelled", "state", f.state)
	}
	f.state = StateIdle
	f.pending = nil
}

// Receive decodes the selected source. A decode failure returns to Idle with
// an error notice; the error result is only set when no source was requested.
func (f *Flow) Receive(r io.Reader) (Notice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateAwaitingSource {
		return Notice{}, ErrNoSource
	}

	data, err := io.ReadAll(r)
	if err != nil {
		f.state = StateIdle
		f.logger.Warn("import read failed", "error", err)
		return failure("Could not read file: " + err.Error()), nil
	}

	list, err := codec.Decode(data)
	if err != nil {
		f.state = StateIdle
		f.logger.Warn("import decode failed", "error", err)
		return failure("Invalid JSON file: " + err.Error()), nil
	}

	f.pending = list
	f.state = StateAwaitingDecision
	f.logger.Debug("import decoded", "count", len(list))
	return Notice{Kind: NoticeNone, Text: fmt.Sprintf("%d commands ready to import", len(list))}, nil
}

// Resolve commits the pending list with policy and returns to Idle.
func (f *Flow) Resolve(policy Policy) (Notice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateAwaitingDecision {
		return Notice{}, ErrNoPending
	}

	var (
		n   Notice
		err error
	)
	switch policy {
	case PolicyAppend:
		var added []model.Command
		added, err = f.repo.MergeAppend(f.pending)
		n = success(fmt.Sprintf("Appended %d commands", len(added)))
	case PolicyOverwrite:
		err = f.repo.MergeOverwrite(f.pending)
		n = success(fmt.Sprintf("Overwritten with %d commands", len(f.pending)))
	default:
		return Notice{}, ErrUnknownPolicy
	}

	f.state = StateIdle
	f.pending = nil
	if err != nil {
		f.logger.Error("import commit failed", "policy", policy, "error", err)
		return failure("Import failed: " + err.Error()), nil
	}
	f.logger.Info("import committed", "policy", policy)
	return n, nil
}

// Import runs the whole import path for callers that already know the policy.
func (f *Flow) Import(r io.Reader, policy Policy) (Notice, error) {
	if policy != PolicyAppend && policy != PolicyOverwrite {
		return Notice{}, ErrUnknownPolicy
	}
	if err := f.BeginImport(); err != nil {
		return Notice{}, err
	}
	n, err := f.Receive(r)
	if err != nil || n.Kind == NoticeError {
		return n, err
	}
	return f.Resolve(policy)
}

// Preview returns the JSON that Export would write.
func (f *Flow) Preview() (string, error) {
	data, err := codec.EncodeIndent(f.repo.List())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Dir is the directory export files are written to.
func (f *Flow) Dir() string {
	return filepath.Join(f.exportDir, "quickroot")
}

// Export writes the current list to a timestamped file and returns its path.
// Failures are reported in the notice; path is empty then.
func (f *Flow) Export(now time.Time) (Notice, string) {
	data, err := codec.EncodeIndent(f.repo.List())
	if err != nil {
		return failure("Export failed: " + err.Error()), ""
	}

	dir := f.Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		f.logger.Error("export failed", "error", err)
		return failure("Export failed: " + err.Error()), ""
	}

	path := filepath.Join(dir, ExportFilename(now))
	if err := f.write(path, data); err != nil {
		f.logger.Error("export failed", "path", path, "error", err)
		return failure("Export failed: " + err.Error()), ""
	}

	f.logger.Info("exported commands", "path", path)
	return success("Exported to " + path), path
}
