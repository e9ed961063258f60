package dedup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/sirupsen/logrus"
)

// Filter is a bloom filter of URLs fetched by earlier crawls
type Filter struct {
	filter *bloom.BloomFilter
	mu     sync.Mutex
}

// NewFilter creates filter
func NewFilter(n uint, fp float64) *Filter {
	return &Filter{filter: bloom.NewWithEstimates(n, fp)}
}

// Open creates a filter and loads path into it when the file exists
func Open(path string, n uint, fp float64) (*Filter, error) {
	f := NewFilter(n, fp)
	if path == "" {
		return f, nil
	}
	if err := f.LoadFromFile(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load crawl history %s: %w", path, err)
	}
	return f, nil
}

// Test tests membership
func (f *Filter) Test(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter.Test(data)
}

// Add adds data
func (f *Filter) Add(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.Add(data)
}

// ApproximateSize estimates how many distinct URLs were added
func (f *Filter) ApproximateSize() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter.ApproximatedSize()
}

// SaveToFile writes the filter to a temporary file and renames it over path
func (f *Filter) SaveToFile(path string) error {
	f.mu.Lock()
	data, err := f.filter.MarshalBinary()
	f.mu.Unlock()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFromFile loads filter
func (f *Filter) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter.UnmarshalBinary(data)
}

// PersistenceManager saves a filter periodically and once more on Stop
type PersistenceManager struct {
	filter   *Filter
	path     string
	interval time.Duration
	logger   *logrus.Logger
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewPersistenceManager creates manager
func NewPersistenceManager(filter *Filter, path string, interval time.Duration, logger *logrus.Logger) *PersistenceManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PersistenceManager{
		filter:   filter,
		path:     path,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start starts saving
func (pm *PersistenceManager) Start() {
	go func() {
		defer close(pm.done)
		ticker := time.NewTicker(pm.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				pm.save()
			case <-pm.stopChan:
				pm.save()
				return
			}
		}
	}()
}

// Stop performs a final save and waits for it
func (pm *PersistenceManager) Stop() {
	pm.stopOnce.Do(func() {
		close(pm.stopChan)
		<-pm.done
	})
}

func (pm *PersistenceManager) save() {
	if err := pm.filter.SaveToFile(pm.path); err != nil {
		pm.logger.WithError(err).WithField("path", pm.path).Warn("failed to save crawl history")
	}
}
