// Package runs keeps the history of finished orchestration runs as one
// JSON file per run under <data_dir>/runs/.
package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/HendryAvila/smartflow/internal/logging"
	"github.com/HendryAvila/smartflow/internal/orchestrator"
	"github.com/HendryAvila/smartflow/internal/workflow"
)

// RunsDir is the subdirectory under the data dir where runs live.
const RunsDir = "runs"

// ErrNotFound is returned when no run has the requested id.
var ErrNotFound = errors.New("run not found")

// Summary is the listing view of a stored run.
type Summary struct {
	OrchestrationID string          `json:"orchestrationId"`
	ProjectID       string          `json:"projectId,omitempty"`
	Workflow        string          `json:"workflow"`
	Status          workflow.Status `json:"status"`
	Success         bool            `json:"success"`
	Warnings        int             `json:"warnings"`
	Error           string          `json:"error,omitempty"`
	Timestamp       string          `json:"timestamp"`
}

// Store defines the persistence interface for run history.
type Store interface {
	Save(res *orchestrator.WorkflowResult) error
	Get(id string) (*orchestrator.WorkflowResult, error)
	List(limit int) ([]Summary, error)
}

// FileStore implements Store on the local filesystem. It also serves as
// an orchestrator.RunObserver so the engine records runs as they finish.
type FileStore struct {
	dir    string
	logger *logging.Logger
	mu     sync.Mutex
}

// NewFileStore creates a run store rooted at dataDir.
func NewFileStore(dataDir string, logger *logging.Logger) *FileStore {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FileStore{dir: RunsPath(dataDir), logger: logger.Named("runs")}
}

// RunsPath returns the directory holding run files.
func RunsPath(dataDir string) string {
	return filepath.Join(dataDir, RunsDir)
}

func (fs *FileStore) path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid run id %q", id)
	}
	return filepath.Join(fs.dir, id+".json"), nil
}

// Save writes a run, replacing any earlier file with the same id.
func (fs *FileStore) Save(res *orchestrator.WorkflowResult) error {
	if res == nil {
		return errors.New("nil run")
	}
	path, err := fs.path(res.OrchestrationID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := os.MkdirAll(fs.dir, 0o755); err != nil {
		return fmt.Errorf("creating runs directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing run: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing run: %w", err)
	}
	return nil
}

// Get reads one run by orchestration id.
func (fs *FileStore) Get(id string) (*orchestrator.WorkflowResult, error) {
	path, err := fs.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return nil, fmt.Errorf("reading run: %w", err)
	}
	var res orchestrator.WorkflowResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parsing run %q: %w", id, err)
	}
	return &res, nil
}

// List returns stored runs, most recent first. A limit <= 0 returns all.
// Unreadable files are skipped.
func (fs *FileStore) List(limit int) ([]Summary, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Summary{}, nil
		}
		return nil, fmt.Errorf("reading runs directory: %w", err)
	}

	result := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		res, err := fs.Get(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue // skip unreadable runs
		}
		result = append(result, summarize(res))
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp > result[j].Timestamp
		}
		return result[i].OrchestrationID < result[j].OrchestrationID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// OnRunComplete implements orchestrator.RunObserver.
//
// Best-effort: save failures are logged, the run already finished.
func (fs *FileStore) OnRunComplete(ctx context.Context, res *orchestrator.WorkflowResult) {
	if err := fs.Save(res); err != nil {
		fs.logger.Warn(ctx, "saving run history", zap.Error(err))
	}
}

func summarize(res *orchestrator.WorkflowResult) Summary {
	return Summary{
		OrchestrationID: res.OrchestrationID,
		ProjectID:       res.ProjectID,
		Workflow:        res.Workflow.Template,
		Status:          res.Workflow.Status,
		Success:         res.Success,
		Warnings:        len(res.Warnings),
		Error:           res.Error,
		Timestamp:       res.Timestamp,
	}
}
