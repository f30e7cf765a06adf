package playbook

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
)

// Store abstracts playbook persistence. A run loads once at start and
// saves once per merge; concurrent external writers are not guarded
// against beyond best-effort file locking.
type Store interface {
	Load() (*Playbook, error)
	Save(p *Playbook) error
}

// FileStore persists the playbook as a single JSON document. It uses a
// mutex for in-process concurrency and file locking for cross-process
// safety, writing through a temp file plus rename.
type FileStore struct {
	Path          string
	DefaultBudget int
	mu            sync.Mutex
}

// NewFileStore creates a file-backed store at the given path.
func NewFileStore(path string, defaultBudget int) *FileStore {
	return &FileStore{Path: path, DefaultBudget: defaultBudget}
}

// Load reads the persisted playbook. A missing file yields an empty
// playbook at version 1 with the store's default budget.
func (s *FileStore) Load() (*Playbook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lockFile, err := acquireFileLock(s.Path, lockShared)
	if err != nil {
		return nil, errors.Wrap(err, errors.MergeFailed, "failed to lock playbook file")
	}
	defer releaseFileLock(lockFile)

	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return New(s.DefaultBudget), nil
	}
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.MergeFailed, "failed to read playbook"),
			errors.Fields{"path": s.Path},
		)
	}

	var p Playbook
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.MergeFailed, "failed to decode playbook"),
			errors.Fields{"path": s.Path},
		)
	}
	if p.Version < 1 {
		p.Version = 1
	}
	if p.TokenBudget <= 0 {
		p.TokenBudget = s.DefaultBudget
		if p.TokenBudget <= 0 {
			p.TokenBudget = DefaultTokenBudget
		}
	}
	if p.Items == nil {
		p.Items = []Item{}
	}
	return &p, nil
}

// Save writes the playbook atomically and refreshes UpdatedAt.
func (s *FileStore) Save(p *Playbook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lockFile, err := acquireFileLock(s.Path, lockExclusive)
	if err != nil {
		return errors.Wrap(err, errors.MergeFailed, "failed to lock playbook file")
	}
	defer releaseFileLock(lockFile)

	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return errors.Wrap(err, errors.MergeFailed, "failed to create playbook directory")
	}

	p.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.MergeFailed, "failed to encode playbook")
	}

	tmpPath := s.Path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return errors.Wrap(err, errors.MergeFailed, "failed to write playbook")
	}

	if err := os.Rename(tmpPath, s.Path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.MergeFailed, "failed to replace playbook")
	}

	return nil
}
