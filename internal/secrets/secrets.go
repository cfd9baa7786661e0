// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: kaggle-username, kaggle-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Key files recognized for Kaggle authentication.
const (
	kaggleUsernameKey = "kaggle-username"
	kaggleKeyKey      = "kaggle-key"
)

// Kaggle returns the Kaggle credential pair from loaded secrets. Both keys
// absent means anonymous access and returns empty strings. A lone username
// or key is a misconfiguration that would turn into a confusing 401 at
// download time, so it is rejected here.
func Kaggle(secrets map[string]string) (username, key string, err error) {
	username, key = secrets[kaggleUsernameKey], secrets[kaggleKeyKey]
	if username != "" && key == "" {
		return "", "", fmt.Errorf("%s is set but %s is missing", kaggleUsernameKey, kaggleKeyKey)
	}
	if key != "" && username == "" {
		return "", "", fmt.Errorf("%s is set but %s is missing", kaggleKeyKey, kaggleUsernameKey)
	}
	return username, key, nil
}
