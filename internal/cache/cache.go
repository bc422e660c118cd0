package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"tuxedo2mqtt/internal/types"
)

const cacheFileName = "tuxedo2mqtt_cache.json"

// SaveCache persists the last known panel state so a retained state can be
// published right after startup, before the first poll completes.
func SaveCache(data *types.CacheData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %v", err)
	}

	cacheDir, err := getCacheDir()
	if err != nil {
		return fmt.Errorf("failed to get cache directory: %v", err)
	}

	err = os.MkdirAll(cacheDir, 0755)
	if err != nil {
		return fmt.Errorf("failed to create cache directory: %v", err)
	}

	err = os.WriteFile(filepath.Join(cacheDir, cacheFileName), payload, 0644)
	if err != nil {
		return fmt.Errorf("failed to write cache file: %v", err)
	}

	return nil
}

// LoadCache returns the persisted snapshot, or nil when none exists.
func LoadCache() (*types.CacheData, error) {
	cacheDir, err := getCacheDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get cache directory: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cacheDir, cacheFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache file: %v", err)
	}

	var cacheData types.CacheData
	err = json.Unmarshal(data, &cacheData)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %v", err)
	}

	return &cacheData, nil
}

func DeleteCache() error {
	cacheDir, err := getCacheDir()
	if err != nil {
		return fmt.Errorf("failed to get cache directory: %v", err)
	}

	err = os.Remove(filepath.Join(cacheDir, cacheFileName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache file: %v", err)
	}

	return nil
}

func getCacheDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %v", err)
	}

	return filepath.Join(homeDir, ".cache", "tuxedo2mqtt"), nil
}
