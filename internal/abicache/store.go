package abicache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofrs/flock"
)

// FileStore keeps one interface document per address under dir.
// Records are written once and never replaced.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the record path for address: <dir>/0x<lowercase hex>.json.
func (s *FileStore) Path(address common.Address) string {
	return filepath.Join(s.dir, strings.ToLower(address.Hex())+".json")
}

// Get returns the stored record for address, if any.
func (s *FileStore) Get(address common.Address) ([]byte, bool, error) {
	data, err := os.ReadFile(s.Path(address))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read interface record: %w", err)
	}
	return data, true, nil
}

// Put stores raw under address unless a record already exists, and returns the
// bytes that are on disk afterwards. Writers to the same address are serialized
// through a lock file so the first record wins, across processes too.
func (s *FileStore) Put(address common.Address, raw []byte) ([]byte, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	path := s.Path(address)
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock interface record: %w", err)
	}
	defer lock.Unlock()

	if existing, ok, err := s.Get(address); err != nil {
		return nil, err
	} else if ok {
		return existing, nil
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o644); err != nil {
		return nil, fmt.Errorf("write interface tmp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return nil, fmt.Errorf("rename interface record: %w", err)
	}
	return raw, nil
}
