package app

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// Profiler keeps the last duration of each named CPU scope plus a set of
// per-frame counters.
type Profiler struct {
	Scopes map[string]time.Duration
	Counts map[string]int
	Order  []string

	starts map[string]time.Time
	now    func() time.Time
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes: make(map[string]time.Duration),
		Counts: make(map[string]int),
		starts: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (p *Profiler) BeginScope(name string) {
	p.starts[name] = p.now()
	if !slices.Contains(p.Order, name) {
		p.Order = append(p.Order, name)
	}
}

func (p *Profiler) EndScope(name string) {
	if start, ok := p.starts[name]; ok {
		p.Scopes[name] = p.now().Sub(start)
		delete(p.starts, name)
	}
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

// Reset zeroes the timings; scope order and counters are kept.
func (p *Profiler) Reset() {
	for k := range p.Scopes {
		p.Scopes[k] = 0
	}
}

func (p *Profiler) String() string {
	var sb strings.Builder

	sb.WriteString("cpu:\n")
	for _, name := range p.Order {
		ms := float64(p.Scopes[name].Microseconds()) / 1000.0
		fmt.Fprintf(&sb, "  %-10s %6.2f ms\n", name, ms)
	}

	keys := make([]string, 0, len(p.Counts))
	for k := range p.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sb.WriteString("counts:\n")
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %-10s %6d\n", k, p.Counts[k])
	}
	return sb.String()
}
