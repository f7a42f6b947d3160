package catalog

import (
	"sort"
	"strings"
	"sync"

	"github.com/polisai/polis-units/pkg/units"
)

// PhysicalTypes maps physical type IDs to human labels such as "length" or
// "speed/velocity". It implements units.Labeler.
type PhysicalTypes struct {
	mu     sync.RWMutex
	labels map[units.PhysicalTypeID][]string
}

// NewPhysicalTypes creates an empty labeler.
func NewPhysicalTypes() *PhysicalTypes {
	return &PhysicalTypes{labels: make(map[units.PhysicalTypeID][]string)}
}

// Add attaches labels to id. Labels already present are ignored.
func (p *PhysicalTypes) Add(id units.PhysicalTypeID, labels ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || contains(p.labels[id], l) {
			continue
		}
		p.labels[id] = append(p.labels[id], l)
	}
}

// Label returns the labels of id joined by "/".
func (p *PhysicalTypes) Label(id units.PhysicalTypeID) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	labels, ok := p.labels[id]
	if !ok {
		return "", false
	}
	return strings.Join(labels, "/"), true
}

// Find returns the ID carrying label.
func (p *PhysicalTypes) Find(label string) (units.PhysicalTypeID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for id, labels := range p.labels {
		if contains(labels, label) {
			return id, true
		}
	}
	return "", false
}

// IDs returns every labelled ID, sorted.
func (p *PhysicalTypes) IDs() []units.PhysicalTypeID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]units.PhysicalTypeID, 0, len(p.labels))
	for id := range p.labels {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
