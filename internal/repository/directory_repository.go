package repository

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

// Directory is the fixed set of identities a desk operator can act as.
// It is read-only after construction.
type Directory struct {
	people []domain.Identity
	byID   map[string]domain.Identity
	byName map[string]domain.Identity
}

// DefaultIdentities is the built-in directory.
var DefaultIdentities = []domain.Identity{
	{ID: "user-0", Name: "Support Lead"},
	{ID: "user-1", Name: "IT Person"},
	{ID: "user-2", Name: "Frontend Developer"},
	{ID: "user-3", Name: "Backend Developer"},
	{ID: "user-4", Name: "Database Developer"},
	{ID: "user-5", Name: "UI Designer"},
	{ID: "user-6", Name: "AI Engineer"},
	{ID: "user-7", Name: "Network Engineer"},
}

type directoryFile struct {
	Identities []domain.Identity `yaml:"identities"`
}

// NewDirectory indexes people. Ids must be unique and non-empty.
func NewDirectory(people []domain.Identity) (*Directory, error) {
	d := &Directory{
		people: make([]domain.Identity, 0, len(people)),
		byID:   make(map[string]domain.Identity, len(people)),
		byName: make(map[string]domain.Identity, len(people)),
	}
	for _, p := range people {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("directory entry %q has no id", p.Name)
		}
		if _, dup := d.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate directory id %q", p.ID)
		}
		d.people = append(d.people, p)
		d.byID[p.ID] = p
		if p.Name != "" {
			d.byName[strings.ToLower(p.Name)] = p
		}
	}
	return d, nil
}

// LoadDirectory reads a YAML directory file, or returns the default
// directory when path is empty.
func LoadDirectory(path string) (*Directory, error) {
	if path == "" {
		return NewDirectory(DefaultIdentities)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	var f directoryFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse directory %s: %w", path, err)
	}
	if len(f.Identities) == 0 {
		return nil, fmt.Errorf("directory %s lists no identities", path)
	}
	return NewDirectory(f.Identities)
}

// List returns the identities in file order.
func (d *Directory) List() []domain.Identity {
	out := make([]domain.Identity, len(d.people))
	copy(out, d.people)
	return out
}

// ByID looks an identity up by id.
func (d *Directory) ByID(id string) (domain.Identity, bool) {
	p, ok := d.byID[id]
	return p, ok
}

// Resolve matches value against ids first, then names case-insensitively.
func (d *Directory) Resolve(value string) (domain.Identity, bool) {
	if p, ok := d.byID[value]; ok {
		return p, true
	}
	p, ok := d.byName[strings.ToLower(strings.TrimSpace(value))]
	return p, ok
}
