// Package prefs persists the one user preference the tool keeps: the chosen
// destination address. Absence means "send to the wallet's own address".
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const destinationKey = "consolidation_destination"

// Store reads and writes preferences in a small JSON file.
type Store struct {
	path string
}

// NewStore creates a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath places the preference file under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "wallet-consolidator", "prefs.json"), nil
}

// Destination returns the saved destination address, or "" when none is set.
func (s *Store) Destination() (string, error) {
	values, err := s.read()
	if err != nil {
		return "", err
	}
	return values[destinationKey], nil
}

// SetDestination saves the destination address, creating the file and its
// directory on first write.
func (s *Store) SetDestination(address string) error {
	values, err := s.read()
	if err != nil {
		return err
	}
	values[destinationKey] = address
	return s.write(values)
}

// ClearDestination removes the saved destination.
func (s *Store) ClearDestination() error {
	values, err := s.read()
	if err != nil {
		return err
	}
	delete(values, destinationKey)
	return s.write(values)
}

func (s *Store) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse preferences: %w", err)
	}
	return values, nil
}

func (s *Store) write(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}
