// Package datastore is a small JSON-file key/value store kept in memory and
// flushed to disk periodically and on Close.
package datastore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrClosed      = errors.New("datastore is closed")
	ErrMemoryLimit = errors.New("datastore memory limit exceeded")
)

type Config struct {
	FilePath         string
	AutoSaveInterval time.Duration
	// MaxMemorySize caps the approximate JSON size of all values; 0 disables it.
	MaxMemorySize int64
	BackupCount   int
	Logger        *zap.Logger
}

func DefaultConfig(filePath string) *Config {
	return &Config{
		FilePath:         filePath,
		AutoSaveInterval: 10 * time.Second,
		MaxMemorySize:    100 * 1024 * 1024,
		BackupCount:      3,
	}
}

type DataStore struct {
	cfg  *Config
	file string
	log  *zap.Logger

	mu         sync.RWMutex
	data       map[string]json.RawMessage
	memorySize int64
	closed     bool

	saveMu       sync.Mutex
	lastChecksum string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(filePath string) (*DataStore, error) {
	return NewWithConfig(DefaultConfig(filePath))
}

func NewWithConfig(cfg *Config) (*DataStore, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.FilePath == "" {
		return nil, errors.New("file path cannot be empty")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	ds := &DataStore{
		cfg:  cfg,
		file: cfg.FilePath,
		log:  cfg.Logger.Named("datastore"),
		data: make(map[string]json.RawMessage),
	}

	_, err := os.Stat(cfg.FilePath)
	switch {
	case os.IsNotExist(err):
		if err := writeFileAtomic(ds.file, []byte("{}")); err != nil {
			return nil, fmt.Errorf("create empty store: %w", err)
		}
	case err == nil:
		if err := ds.load(); err != nil {
			return nil, fmt.Errorf("load %s: %w", ds.file, err)
		}
	default:
		return nil, fmt.Errorf("stat %s: %w", ds.file, err)
	}

	if cfg.AutoSaveInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		ds.cancel = cancel
		ds.wg.Add(1)
		go ds.autoSave(ctx)
	}
	return ds, nil
}

// Put stores value under key as JSON.
func (ds *DataStore) Put(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.closed {
		return ErrClosed
	}

	size := ds.memorySize - int64(len(ds.data[key])) + int64(len(raw))
	if ds.cfg.MaxMemorySize > 0 && size > ds.cfg.MaxMemorySize {
		return ErrMemoryLimit
	}
	ds.memorySize = size
	ds.data[key] = raw
	return nil
}

// Get decodes the value stored under key into out. It reports false when
// the key is absent.
func (ds *DataStore) Get(key string, out any) (bool, error) {
	ds.mu.RLock()
	raw, ok := ds.data[key]
	closed := ds.closed
	ds.mu.RUnlock()

	if closed {
		return false, ErrClosed
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func (ds *DataStore) Delete(key string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if raw, ok := ds.data[key]; ok {
		ds.memorySize -= int64(len(raw))
		delete(ds.data, key)
	}
}

// Keys returns the stored keys in sorted order.
func (ds *DataStore) Keys() []string {
	ds.mu.RLock()
	keys := make([]string, 0, len(ds.data))
	for k := range ds.data {
		keys = append(keys, k)
	}
	ds.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Save flushes to disk now.
func (ds *DataStore) Save() error {
	ds.mu.RLock()
	closed := ds.closed
	ds.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return ds.save()
}

// Close stops the autosave loop and writes a final snapshot.
func (ds *DataStore) Close() error {
	ds.mu.Lock()
	if ds.closed {
		ds.mu.Unlock()
		return nil
	}
	ds.closed = true
	ds.mu.Unlock()

	if ds.cancel != nil {
		ds.cancel()
	}
	ds.wg.Wait()
	return ds.save()
}

func (ds *DataStore) save() error {
	ds.saveMu.Lock()
	defer ds.saveMu.Unlock()

	ds.mu.RLock()
	data, err := json.MarshalIndent(ds.data, "", "  ")
	ds.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	sum := checksum(data)
	if sum == ds.lastChecksum {
		return nil
	}

	if ds.cfg.BackupCount > 0 {
		if err := ds.backup(); err != nil {
			ds.log.Warn("Failed to create backup", zap.Error(err))
		}
	}
	if err := writeFileAtomic(ds.file, data); err != nil {
		return err
	}

	written, err := os.ReadFile(ds.file)
	if err != nil {
		return fmt.Errorf("verify %s: %w", ds.file, err)
	}
	if checksum(written) != sum {
		return fmt.Errorf("verify %s: checksum mismatch", ds.file)
	}

	ds.lastChecksum = sum
	ds.log.Debug("Store saved", zap.Int("keys", len(ds.Keys())))
	return nil
}

func (ds *DataStore) load() error {
	data, err := os.ReadFile(ds.file)
	if err != nil {
		return err
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if m == nil {
		m = make(map[string]json.RawMessage)
	}

	var size int64
	for _, v := range m {
		size += int64(len(v))
	}

	ds.mu.Lock()
	ds.data = m
	ds.memorySize = size
	ds.mu.Unlock()
	ds.lastChecksum = checksum(data)
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (ds *DataStore) backup() error {
	src, err := os.Open(ds.file)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer src.Close()

	name := fmt.Sprintf("%s.backup.%s", ds.file, time.Now().Format("20060102_150405.000"))
	dst, err := os.Create(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	ds.pruneBackups()
	return nil
}

// pruneBackups keeps the newest BackupCount backups.
func (ds *DataStore) pruneBackups() {
	matches, err := filepath.Glob(ds.file + ".backup.*")
	if err != nil || len(matches) <= ds.cfg.BackupCount {
		return
	}

	type backupFile struct {
		path    string
		modTime time.Time
	}
	files := make([]backupFile, 0, len(matches))
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil {
			files = append(files, backupFile{m, info.ModTime()})
		}
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path < files[j].path
		}
		return files[i].modTime.Before(files[j].modTime)
	})

	for _, f := range files[:max(0, len(files)-ds.cfg.BackupCount)] {
		if err := os.Remove(f.path); err != nil {
			ds.log.Warn("Failed to remove old backup", zap.String("path", f.path), zap.Error(err))
		}
	}
}

func (ds *DataStore) autoSave(ctx context.Context) {
	defer ds.wg.Done()

	ticker := time.NewTicker(ds.cfg.AutoSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ds.save(); err != nil {
				ds.log.Error("Auto-save failed", zap.Error(err))
			}
		}
	}
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type Stats struct {
	Keys       int
	MemorySize int64
	FilePath   string
}

func (ds *DataStore) Stats() Stats {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return Stats{Keys: len(ds.data), MemorySize: ds.memorySize, FilePath: ds.file}
}
