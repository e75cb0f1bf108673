package source

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wakefire/wakefire/internal/audio"
	"github.com/wakefire/wakefire/internal/logger"
	"github.com/wakefire/wakefire/internal/observability/metrics"
	"github.com/wakefire/wakefire/internal/trigger"
	"github.com/wakefire/wakefire/internal/wakeword"
)

// RegistryConfig holds the collaborators the registry uses to discover
// devices and open sources.
type RegistryConfig struct {
	Lister      audio.DeviceLister
	Recorders   audio.RecorderFactory
	NewDetector wakeword.Factory
	// Filter drops virtual devices. Defaults to audio.NewDeviceFilter().
	Filter  *audio.DeviceFilter
	Sink    audio.DebugSink
	Log     logger.Logger
	Metrics *metrics.EngineMetrics
	Now     func() time.Time
	// DiscoveryWarnInterval limits how often a failing device query is
	// logged at warn level. Defaults to DefaultDiscoveryWarnInterval.
	DiscoveryWarnInterval time.Duration
}

// DefaultDiscoveryWarnInterval is the default spacing of repeated device
// query warnings.
const DefaultDiscoveryWarnInterval = 30 * time.Second

// Registry tracks one Source per capture device name, in insertion order.
// Refresh and Close are called from the coordinator loop.
type Registry struct {
	cfg           RegistryConfig
	log           logger.Logger
	discoveryWarn *rate.Sometimes

	mu      sync.Mutex
	order   []string
	sources map[string]*Source
}

// NewRegistry returns an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Filter == nil {
		cfg.Filter = audio.NewDeviceFilter()
	}
	log := cfg.Log
	if log == nil {
		log = logger.Global().Module("registry")
	}
	if cfg.DiscoveryWarnInterval <= 0 {
		cfg.DiscoveryWarnInterval = DefaultDiscoveryWarnInterval
	}
	return &Registry{
		cfg:           cfg,
		log:           log,
		discoveryWarn: &rate.Sometimes{First: 1, Interval: cfg.DiscoveryWarnInterval},
		sources:       make(map[string]*Source),
	}
}

// Refresh brings the tracked sources in line with the devices present: dead
// sources are retired, then sources whose device vanished, then a source is
// opened for every new device. A failed device query leaves the tracked set
// as it is after retiring dead sources.
func (r *Registry) Refresh(ctx context.Context) {
	before := r.Len()
	defer func() {
		if n := r.Len(); n != before {
			r.log.Debug("tracked sources changed",
				logger.Int("count", n),
				logger.String("devices", strings.Join(r.Names(), ", ")))
		}
	}()

	r.retire(r.deadNames(), metrics.ReasonDead)

	names, err := r.cfg.Lister.ListDevices()
	if err != nil {
		r.cfg.Metrics.DiscoveryFailed()
		warned := false
		r.discoveryWarn.Do(func() {
			warned = true
			r.log.Warn("capture device query failed", logger.Error(err))
		})
		if !warned {
			r.log.Debug("capture device query failed", logger.Error(err))
		}
		r.cfg.Metrics.SetSourcesActive(r.Len())
		return
	}
	devices := r.cfg.Filter.Apply(names)

	present := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		present[d.Name] = struct{}{}
	}
	r.retire(r.vanishedNames(present), metrics.ReasonVanished)

	for _, d := range devices {
		if r.tracked(d.Name) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		r.open(ctx, d)
	}

	r.cfg.Metrics.SetSourcesActive(r.Len())
}

func (r *Registry) open(ctx context.Context, d audio.Device) {
	s, err := Open(ctx, Config{
		Name:        d.Name,
		Index:       d.Index,
		NewDetector: r.cfg.NewDetector,
		Recorders:   r.cfg.Recorders,
		Sink:        r.cfg.Sink,
		Log:         r.log.Module("source"),
		Metrics:     r.cfg.Metrics,
		Now:         r.cfg.Now,
	})
	if err != nil {
		r.log.Warn("detection source not opened, retrying next poll",
			logger.String("device", d.Name),
			logger.Int("index", d.Index),
			logger.Error(err))
		return
	}

	r.mu.Lock()
	r.sources[d.Name] = s
	r.order = append(r.order, d.Name)
	r.mu.Unlock()

	r.cfg.Metrics.SourceOpened()
	r.log.Info("source added",
		logger.String("device", d.Name),
		logger.Int("index", d.Index),
		logger.String("source_id", s.ID()))
}

func (r *Registry) deadNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dead []string
	for _, name := range r.order {
		if !r.sources[name].Alive() {
			dead = append(dead, name)
		}
	}
	return dead
}

func (r *Registry) vanishedNames(present map[string]struct{}) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var gone []string
	for _, name := range r.order {
		if _, ok := present[name]; !ok {
			gone = append(gone, name)
		}
	}
	return gone
}

func (r *Registry) tracked(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sources[name]
	return ok
}

// retire stops and removes the named sources.
func (r *Registry) retire(names []string, reason string) {
	for _, name := range names {
		r.mu.Lock()
		s, ok := r.sources[name]
		if ok {
			delete(r.sources, name)
			r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
		}
		r.mu.Unlock()
		if !ok {
			continue
		}

		s.Stop()
		r.cfg.Metrics.SourceRetired(reason)
		r.log.Info("source removed",
			logger.String("device", name),
			logger.Int("index", s.Index()),
			logger.String("source_id", s.ID()),
			logger.String("reason", reason))
	}
}

// Sources returns the tracked sources in insertion order.
func (r *Registry) Sources() []*Source {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Source, len(r.order))
	for i, name := range r.order {
		out[i] = r.sources[name]
	}
	return out
}

// Names returns the tracked device names in insertion order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Each calls fn with the name and pending request pair of every tracked
// source, in insertion order.
func (r *Registry) Each(fn func(name string, pending *trigger.Pending)) {
	for _, s := range r.Sources() {
		fn(s.Name(), s.Pending())
	}
}

// Len returns the number of tracked sources.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Close stops every source in parallel and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	sources := make([]*Source, 0, len(r.order))
	for _, name := range r.order {
		sources = append(sources, r.sources[name])
	}
	r.order = nil
	clear(r.sources)
	r.mu.Unlock()

	var g errgroup.Group
	for _, s := range sources {
		g.Go(func() error {
			s.Stop()
			r.cfg.Metrics.SourceRetired(metrics.ReasonShutdown)
			return nil
		})
	}
	err := g.Wait()

	r.cfg.Metrics.SetSourcesActive(0)
	if len(sources) > 0 {
		r.log.Info("all sources stopped", logger.Int("count", len(sources)))
	}
	return err
}
