package session

import (
	"maps"
	"sync"

	"github.com/retroenv/segaxsf/internal/engine"
	"github.com/retroenv/segaxsf/internal/options"
	"github.com/retroenv/segaxsf/internal/tags"
	"github.com/retroenv/retrogolib/log"
)

// Manager creates sessions sharing loader, dependency checker, engine and
// configuration. It counts the opened tracks per variant and is safe for
// concurrent use.
type Manager struct {
	logger *log.Logger
	cfg    options.Playback
	loader ContainerLoader
	deps   DependencyChecker
	engine engine.Engine

	mu     sync.Mutex
	counts map[engine.Variant]int
}

// NewManager returns a new session manager.
func NewManager(logger *log.Logger, cfg options.Playback, loader ContainerLoader,
	deps DependencyChecker, eng engine.Engine) *Manager {

	return &Manager{
		logger: logger,
		cfg:    cfg,
		loader: loader,
		deps:   deps,
		engine: eng,
		counts: map[engine.Variant]int{},
	}
}

// NewSession returns an unopened session. sink receives the tags of every
// opened track and may be nil.
func (m *Manager) NewSession(sink tags.MetaSink) *Session {
	return &Session{
		logger:     m.logger,
		cfg:        m.cfg,
		manager:    m,
		sink:       sink,
		sampleRate: SampleRate,
	}
}

// Counts returns the number of opened tracks per variant.
func (m *Manager) Counts() map[engine.Variant]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.counts)
}

func (m *Manager) countOpen(variant engine.Variant) {
	m.mu.Lock()
	m.counts[variant]++
	m.mu.Unlock()
}
