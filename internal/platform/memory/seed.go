package memory

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/phrazzld/coursehub-api/internal/domain"
	"gopkg.in/yaml.v3"
)

// Seed is the catalog and user data loaded into a memory store at startup.
type Seed struct {
	Users    []domain.User `yaml:"users"`
	Courses  []Course      `yaml:"courses"`
	Sessions []Session     `yaml:"sessions"`
}

type seedUser struct {
	ID          int64  `yaml:"id"`
	DisplayName string `yaml:"display_name"`
}

// LoadSeed decodes a YAML seed document from r and adds its records to s.
// Sessions must reference courses present in the seed or already in s.
func (s *Store) LoadSeed(r io.Reader) error {
	var raw struct {
		Users    []seedUser `yaml:"users"`
		Courses  []Course   `yaml:"courses"`
		Sessions []Session  `yaml:"sessions"`
	}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode seed: %w", err)
	}

	seed := Seed{Courses: raw.Courses, Sessions: raw.Sessions}
	for _, u := range raw.Users {
		seed.Users = append(seed.Users, domain.User{ID: u.ID, DisplayName: u.DisplayName})
	}
	return s.Apply(seed)
}

// LoadSeedFile is LoadSeed on the named file.
func (s *Store) LoadSeedFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return s.LoadSeed(f)
}

// Apply validates seed and adds its records to s in one step.
func (s *Store) Apply(seed Seed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.committed.clone()
	for _, u := range seed.Users {
		if err := u.Validate(); err != nil {
			return fmt.Errorf("invalid seed user %d: %w", u.ID, err)
		}
		work.users[u.ID] = u
	}
	for _, c := range seed.Courses {
		if c.ID <= 0 {
			return fmt.Errorf("invalid seed course: %w", domain.ErrInvalidID)
		}
		work.courses[c.ID] = c
	}
	for _, sess := range seed.Sessions {
		if sess.ID <= 0 {
			return fmt.Errorf("invalid seed session: %w", domain.ErrInvalidID)
		}
		if _, ok := work.courses[sess.CourseID]; !ok {
			return fmt.Errorf("seed session %d references unknown course %d", sess.ID, sess.CourseID)
		}
		if sess.Status == "" {
			sess.Status = domain.SessionRecruiting
		}
		work.sessions[sess.ID] = sess
	}
	s.committed = work

	s.logger.Info("seed loaded",
		slog.Int("users", len(seed.Users)),
		slog.Int("courses", len(seed.Courses)),
		slog.Int("sessions", len(seed.Sessions)))
	return nil
}
