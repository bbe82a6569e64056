package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/ibeckermayer/igwarmup/internal/config"
	"github.com/ibeckermayer/igwarmup/internal/types"
)

// PostsCacheDir returns the path to the posts cache directory.
// On macOS this is ~/Library/Caches/igwarmup/posts/
func PostsCacheDir() (string, error) {
	cacheDir, err := config.CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "posts"), nil
}

// SavePostCache writes a fetched post to a timestamped JSON file under dir.
// Returns the path to the saved file.
func SavePostCache(dir, username string, post *types.ExtractedPost, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	// Dashes instead of colons for filesystem compatibility
	filename := username + "_" + now.Format("2006-01-02T15-04-05") + ".json"
	path := filepath.Join(dir, filename)

	data, err := json.MarshalIndent(post, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// LoadPostCache reads a file written by SavePostCache
func LoadPostCache(path string) (*types.ExtractedPost, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var post types.ExtractedPost
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, err
	}
	return &post, nil
}
