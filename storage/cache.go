// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package storage provides persistence for the SmartThings TV bridge: the
// accessory cache that survives restarts and the optional InfluxDB status
// recorder.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/soothill/smartthings-tv-bridge/pkg/errors"
	"github.com/soothill/smartthings-tv-bridge/pkg/logger"
	"github.com/soothill/smartthings-tv-bridge/smartthings"
)

const (
	cacheFileName = "accessories.json"
	cacheFileMode = 0600
	cacheDirMode  = 0755
)

// Accessory categories
const (
	CategoryTelevision = "television"
)

// AccessoryRecord is the persisted representation of one registered device.
// Context stashes the device snapshot so the accessory can be rebuilt before
// the API has been contacted on the next start.
type AccessoryRecord struct {
	DeviceID     string             `json:"deviceId"`
	Name         string             `json:"name"`
	Category     string             `json:"category"`
	Context      smartthings.Device `json:"context"`
	RegisteredAt time.Time          `json:"registeredAt"`
}

// AccessoryCache persists accessory records as a single JSON file in the
// bridge state directory. The cache owns the file; the coordinator reads the
// working set during its restore phase and appends newly discovered devices.
type AccessoryCache struct {
	path    string
	mu      sync.Mutex
	records map[string]*AccessoryRecord
}

// NewAccessoryCache creates a cache backed by the given state directory,
// loading any previously persisted records.
func NewAccessoryCache(stateDir string) (*AccessoryCache, error) {
	if err := os.MkdirAll(stateDir, cacheDirMode); err != nil {
		return nil, errors.NewStorageError("create state directory", "", err)
	}

	cache := &AccessoryCache{
		path:    filepath.Join(stateDir, cacheFileName),
		records: make(map[string]*AccessoryRecord),
	}

	if err := cache.load(); err != nil {
		return nil, err
	}

	logger.Info().Str("path", cache.path).
		Int("accessories", len(cache.records)).
		Msg("Accessory cache loaded")

	return cache, nil
}

// load reads the cache file into memory. A missing file is an empty cache.
func (c *AccessoryCache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.NewStorageError("read cache", "", err)
	}

	var records []*AccessoryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return errors.NewStorageError("parse cache", "", err)
	}

	for _, r := range records {
		if r.DeviceID == "" {
			logger.Warn().Msg("Skipping cached accessory without device ID")
			continue
		}
		c.records[r.DeviceID] = r
	}
	return nil
}

// persist writes all records back to disk. Written to a temp file and
// renamed so a crash mid-write cannot corrupt the cache.
func (c *AccessoryCache) persist() error {
	records := make([]*AccessoryRecord, 0, len(c.records))
	for _, r := range c.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].DeviceID < records[j].DeviceID
	})

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.NewStorageError("encode cache", "", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, cacheFileMode); err != nil {
		return errors.NewStorageError("write cache", "", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return errors.NewStorageError("replace cache", "", err)
	}
	return nil
}

// Save upserts an accessory record and persists the cache.
func (c *AccessoryCache) Save(record *AccessoryRecord) error {
	if record == nil || record.DeviceID == "" {
		return errors.NewStorageError("save accessory", "", errors.ErrInvalidConfig)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.records[record.DeviceID] = record
	return c.persist()
}

// Get returns the cached record for a device identifier, or false when the
// device has never been registered.
func (c *AccessoryCache) Get(deviceID string) (*AccessoryRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.records[deviceID]
	return r, ok
}

// All returns all cached records sorted by device identifier.
func (c *AccessoryCache) All() []*AccessoryRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]*AccessoryRecord, 0, len(c.records))
	for _, r := range c.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].DeviceID < records[j].DeviceID
	})
	return records
}

// Remove deletes a record and persists the cache. Removing an unknown
// device is a no-op.
func (c *AccessoryCache) Remove(deviceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.records[deviceID]; !ok {
		return nil
	}
	delete(c.records, deviceID)
	return c.persist()
}

// Len returns the number of cached records.
func (c *AccessoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}
