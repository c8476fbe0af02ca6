// Package schemelinks maps retrieved evidence back to official application
// links. The registry is a hand-maintained JSON file describing each scheme
// and the corpus documents that belong to it.
package schemelinks

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"schemeadvisor/internal/domain"
)

// Scheme describes one welfare scheme and where to apply for it.
type Scheme struct {
	ID          string   `json:"scheme_id"`
	Name        string   `json:"scheme_name"`
	State       string   `json:"state,omitempty"`
	ApplyLink   string   `json:"apply_link"`
	SourceLinks []string `json:"source_links,omitempty"`
	DocIDs      []string `json:"doc_ids,omitempty"`
	FileNames   []string `json:"file_names,omitempty"`
}

// Registry is an in-memory, read-only view of the links file.
type Registry struct {
	schemes []Scheme
}

// NewRegistry wraps an already-loaded scheme list.
func NewRegistry(schemes []Scheme) *Registry {
	return &Registry{schemes: schemes}
}

// Load reads the registry from path. A missing file is not an error: link
// enrichment is optional and the registry simply stays empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return &Registry{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{}, nil
		}
		return nil, fmt.Errorf("read scheme links %s: %w", path, err)
	}
	var schemes []Scheme
	if err := json.Unmarshal(data, &schemes); err != nil {
		return nil, fmt.Errorf("parse scheme links %s: %w", path, err)
	}
	return &Registry{schemes: schemes}, nil
}

// Len returns the number of registered schemes.
func (r *Registry) Len() int { return len(r.schemes) }

// Match returns the schemes whose documents appear in the evidence, in
// registry order and without duplicates. A scheme matches when a passage's
// document id or file name is listed for it, or, failing that, when the
// scheme name occurs in a passage's file name.
func (r *Registry) Match(evidence []domain.Passage) []Scheme {
	if len(r.schemes) == 0 || len(evidence) == 0 {
		return nil
	}
	var out []Scheme
	for _, sc := range r.schemes {
		if r.matches(sc, evidence) {
			out = append(out, sc)
		}
	}
	return out
}

func (r *Registry) matches(sc Scheme, evidence []domain.Passage) bool {
	for _, p := range evidence {
		for _, id := range sc.DocIDs {
			if id == p.DocID {
				return true
			}
		}
		for _, name := range sc.FileNames {
			if strings.EqualFold(name, p.FileName) {
				return true
			}
		}
	}
	if sc.Name == "" {
		return false
	}
	needle := strings.ToLower(sc.Name)
	for _, p := range evidence {
		if strings.Contains(strings.ToLower(p.FileName), needle) {
			return true
		}
	}
	return false
}
