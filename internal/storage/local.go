package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/Deven-0012/Cloud-281/internal/errors"
)

// LocalStore keeps audio captures on the local filesystem under a base
// directory, one subdirectory per vehicle.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates a store rooted at basePath.
func NewLocalStore(basePath string) *LocalStore {
	return &LocalStore{basePath: basePath}
}

// Fetch reads the bytes for locator.
func (s *LocalStore) Fetch(_ context.Context, locator string) ([]byte, error) {
	path, err := s.resolve(locator)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf("audio object %s not found", locator).
				Component("storage").
				Category(errors.CategoryNotFound).
				Build()
		}
		return nil, errors.New(err).
			Component("storage").
			Category(errors.CategoryStorage).
			Context("locator", locator).
			Build()
	}
	return data, nil
}

// Put writes data under locator.
func (s *LocalStore) Put(_ context.Context, locator string, data []byte) error {
	path, err := s.resolve(locator)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(err).
			Component("storage").
			Category(errors.CategoryStorage).
			Context("locator", locator).
			Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New(err).
			Component("storage").
			Category(errors.CategoryStorage).
			Context("locator", locator).
			Build()
	}
	return nil
}

// resolve joins the locator onto the base path, refusing traversal outside it.
func (s *LocalStore) resolve(locator string) (string, error) {
	cleaned := filepath.Clean("/" + locator)
	if strings.Contains(locator, "..") {
		return "", errors.Newf("invalid locator %q", locator).
			Component("storage").
			Category(errors.CategoryValidation).
			Build()
	}
	return filepath.Join(s.basePath, cleaned), nil
}
