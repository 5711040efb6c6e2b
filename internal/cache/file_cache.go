package cache

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forest-guardian/spectral-anomaly-service/internal/properties"
)

// FileCache is a JSON file cache used for acquisition-date listings, keyed
// by the query parameters. Entries carry a checksum so a truncated write is
// treated as a miss rather than served.
type FileCache[T any] struct {
	cacheDir string
}

type entry[T any] struct {
	Data      T         `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum"`
}

func NewFileCache[T any](subDir string) *FileCache[T] {
	return &FileCache[T]{cacheDir: filepath.Join(properties.DataPath(), "cache", subDir)}
}

func (fc *FileCache[T]) GenerateKey(params ...interface{}) string {
	var keyData string
	for _, param := range params {
		keyData += fmt.Sprintf("%v_", param)
	}
	h := sha1.New()
	h.Write([]byte(keyData))
	return hex.EncodeToString(h.Sum(nil))
}

func (fc *FileCache[T]) Get(key string) (T, bool) {
	var zero T
	data, err := os.ReadFile(filepath.Join(fc.cacheDir, key+".json"))
	if err != nil {
		return zero, false
	}
	var e entry[T]
	if err := json.Unmarshal(data, &e); err != nil {
		return zero, false
	}
	if e.Checksum != checksum(e.Data) {
		return zero, false
	}
	return e.Data, true
}

func (fc *FileCache[T]) Set(key string, data T) error {
	if err := os.MkdirAll(fc.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %v", err)
	}
	jsonData, err := json.Marshal(entry[T]{Data: data, CreatedAt: time.Now(), Checksum: checksum(data)})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %v", err)
	}
	cacheFile := filepath.Join(fc.cacheDir, key+".json")
	tmpFile := cacheFile + ".tmp"
	if err := os.WriteFile(tmpFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp cache file: %v", err)
	}
	if err := os.Rename(tmpFile, cacheFile); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename temp cache file: %v", err)
	}
	return nil
}

func checksum[T any](data T) string {
	jsonData, _ := json.Marshal(data)
	hash := md5.Sum(jsonData)
	return hex.EncodeToString(hash[:])
}
