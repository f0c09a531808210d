// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/joshndala/shyft-rag-app/internal/util"
)

// uploaded records one successfully uploaded file version.
type uploaded struct {
	Hash       string    `json:"hash"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// state maps absolute paths to the last uploaded version. An empty path
// keeps it in memory only.
type state struct {
	path  string
	mu    sync.Mutex
	files map[string]uploaded
}

func loadState(path string) (*state, error) {
	s := &state{path: path, files: make(map[string]uploaded)}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read watch state: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.files); err != nil {
		return nil, fmt.Errorf("failed to parse watch state %s: %w", path, err)
	}
	if s.files == nil {
		s.files = make(map[string]uploaded)
	}
	return s, nil
}

func (s *state) unchanged(file, hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.files[file]
	return ok && u.Hash == hash
}

func (s *state) mark(file, hash string) error {
	s.mu.Lock()
	s.files[file] = uploaded{Hash: hash, UploadedAt: time.Now().UTC()}
	if s.path == "" {
		s.mu.Unlock()
		return nil
	}
	data, err := json.MarshalIndent(s.files, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(s.path, data, 0600)
}

func (s *state) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// hashFile returns the hex BLAKE2b-256 digest of the file's content.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
