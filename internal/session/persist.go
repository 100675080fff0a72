package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/me/mfalite/pkg/model"
)

// loadIdentity reads the persisted identity record. A missing file means
// no session; that is not an error.
func loadIdentity(path string) (*model.User, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &u, nil
}

// saveIdentity writes the identity record, token included, readable only
// by the owner.
func saveIdentity(path string, u *model.User) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}
	data, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// removeIdentity deletes the persisted record. Already-absent is fine.
func removeIdentity(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}
