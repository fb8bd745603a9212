package adapter

import (
	"sort"
	"strings"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
)

// Factory constructs an adapter. Called only for enabled registrations, and
// only when the router actually reaches the candidate.
type Factory func() Adapter

// Registration is one row of the static adapter table: which domains the
// adapter serves, at what priority, and how to build it.
type Registration struct {
	Name     string
	Domains  []string // host suffixes; "*" is the wildcard fallback
	Priority int      // lower is tried first
	Enabled  bool
	Build    Factory
}

// Registry holds the static adapter registrations.
type Registry struct {
	regs []Registration
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a registration to the table.
func (r *Registry) Register(reg Registration) {
	r.regs = append(r.regs, reg)
}

// CandidatesFor returns the enabled registrations whose domain patterns match
// the URL's host, sorted ascending by priority. Disabled adapters are never
// returned, so they are never constructed.
func (r *Registry) CandidatesFor(rawURL string) []Registration {
	host := domain.ExtractDomain(rawURL)

	candidates := make([]Registration, 0, len(r.regs))
	for _, reg := range r.regs {
		if !reg.Enabled {
			continue
		}
		if matchesHost(reg.Domains, host) {
			candidates = append(candidates, reg)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})

	return candidates
}

func matchesHost(patterns []string, host string) bool {
	for _, p := range patterns {
		if p == "*" {
			return true
		}
		if host == p || strings.HasSuffix(host, "."+p) {
			return true
		}
	}
	return false
}
