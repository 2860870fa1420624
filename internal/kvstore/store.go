package kvstore

import (
	"errors"
	"strings"
	"sync"
	"time"

	dbmodel "deskchat/cli/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the client-local key-value storage. Get reports ok=false for
// a missing key rather than an error.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Put(key, value string) error
	Delete(key string) error
}

type GORM struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGORM uses the shared global DB. Caller must not close the db.
func NewGORM(db *gorm.DB) (*GORM, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &GORM{db: db, now: time.Now}, nil
}

func (s *GORM) Get(key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, errors.New("kv store is not initialized")
	}
	k, err := normalizeKey(key)
	if err != nil {
		return "", false, err
	}
	var row dbmodel.KVEntry
	err = s.db.Model(&dbmodel.KVEntry{}).Select("value").Where("key = ?", k).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

func (s *GORM) Put(key, value string) error {
	if s == nil || s.db == nil {
		return errors.New("kv store is not initialized")
	}
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	row := dbmodel.KVEntry{
		Key:       k,
		Value:     value,
		UpdatedAt: s.now().UTC().Unix(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error
}

func (s *GORM) Delete(key string) error {
	if s == nil || s.db == nil {
		return errors.New("kv store is not initialized")
	}
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return s.db.Where("key = ?", k).Delete(&dbmodel.KVEntry{}).Error
}

// Memory is an in-process Store for tests and for running without a
// config dir.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: map[string]string{}}
}

func (m *Memory) Get(key string) (string, bool, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[k]
	return v, ok, nil
}

func (m *Memory) Put(key, value string) error {
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[k] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(key string) error {
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.data, k)
	m.mu.Unlock()
	return nil
}

func normalizeKey(key string) (string, error) {
	k := strings.TrimSpace(key)
	if k == "" {
		return "", errors.New("key is required")
	}
	return k, nil
}
