// Package roster loads the reviewer roster file the daemon seeds the store
// from at startup. The roster is the source of truth for who exists and what
// role they carry; presence, counters, and held tasks belong to the store
// and survive reseeding.
package roster

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/okiro/relais/internal/domain/review"
	"github.com/okiro/relais/internal/log"
)

// File is the on-disk roster shape.
type File struct {
	Reviewers []Entry `yaml:"reviewers"`
}

// Entry is one reviewer in the roster file. Name defaults to the ID and an
// empty role defaults to employee.
type Entry struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Role string `yaml:"role"`
}

// Store is the slice of the task store the roster seeds into.
type Store interface {
	UpsertReviewers(ctx context.Context, entries []review.Reviewer) error
}

// Load reads and parses the roster file at path.
func Load(path string) ([]review.Reviewer, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the config file
	if err != nil {
		return nil, fmt.Errorf("reading roster: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing roster %s: %w", path, err)
	}

	entries := make([]review.Reviewer, 0, len(f.Reviewers))
	for _, e := range f.Reviewers {
		name := e.Name
		if name == "" {
			name = e.ID
		}
		entries = append(entries, review.Reviewer{
			ID:   e.ID,
			Name: name,
			Role: review.Role(e.Role),
		})
	}
	return entries, nil
}

// Seed loads the roster at path and upserts it into the store. Returns the
// number of reviewers seeded. ID and role validation happens in the store,
// so a bad entry rejects the whole roster before anything is written.
func Seed(ctx context.Context, store Store, path string) (int, error) {
	entries, err := Load(path)
	if err != nil {
		return 0, err
	}

	if err := store.UpsertReviewers(ctx, entries); err != nil {
		return 0, fmt.Errorf("seeding roster: %w", err)
	}

	log.Info(log.CatRoster, "Roster seeded", "path", path, "reviewers", len(entries))
	return len(entries), nil
}
