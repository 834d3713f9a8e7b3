// Package trailcache is a content-addressable memoization layer for
// computational pipelines. A Cache turns function calls into a lazy graph of
// steps keyed by structural identity (a trail); Checkpoint persists a step's
// result to disk under a hash of its code, arguments and ancestry, and
// rewires future evaluations to load from disk instead of recomputing.
package trailcache

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/trailcache/trailcache/graph"
	"github.com/trailcache/trailcache/internal/fsstore"
	"github.com/trailcache/trailcache/internal/ledger"
	"github.com/trailcache/trailcache/trail"
)

// DefaultDir is the cache directory used when Open is given an empty path.
const DefaultDir = "./dc"

// ArtifactSuffix distinguishes a trail's result blob from other files keyed
// by the same trail. Part of the on-disk layout contract; the inspection
// CLI derives blob names with it.
const ArtifactSuffix = ".store"

// Func is a pipeline function: a name (its graph identity), an optional
// behavior version tag consumed by VersionFingerprint, and the callable
// itself.
type Func struct {
	Name    string
	Version string
	Call    func(ctx context.Context, args []trail.Value, kwargs map[string]trail.Value) (trail.Value, error)
}

// Cache owns a cache directory, the executable graph, the step registry and
// an audit log of directly-recorded calls.
//
// The graph and the registry always share one key set: every registered step
// has an executable entry, and only registered steps have entries. Step
// construction and Recompute maintain the invariant; Checkpoint replaces
// graph entries but never changes the key set.
//
// All graph-structure mutation (Step, Recompute, Checkpoint) must happen
// before any in-flight Get completes; interleaving mutation with evaluation
// is a race. The maps live until Reset or the end of the session; eviction
// is explicit, never implicit.
type Cache struct {
	dir      string
	store    *fsstore.Store
	ledger   *ledger.Ledger
	noLedger bool
	fp       Fingerprinter
	logger   *slog.Logger

	workers int

	graph graph.Graph
	steps map[trail.Key]*Step

	observed []observation
}

type observation struct {
	name   string
	args   []trail.Value
	kwargs map[string]trail.Value
	result trail.Value
}

// Option configures a Cache.
type Option func(*Cache)

// WithFingerprinter replaces the default VersionFingerprint strategy.
func WithFingerprinter(fp Fingerprinter) Option {
	return func(c *Cache) { c.fp = fp }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithWorkers enables parallel graph evaluation with up to n workers.
// Defaults to 1 (serial, deterministic resolution order).
func WithWorkers(n int) Option {
	return func(c *Cache) { c.workers = n }
}

// WithoutLedger disables the SQLite audit ledger. Record and Checkpoint
// then log in memory only, and the inspection CLI loses trail-to-file
// pairing for this directory.
func WithoutLedger() Option {
	return func(c *Cache) { c.noLedger = true }
}

// Open creates the cache directory if absent and returns a Cache over it.
// An empty dir means DefaultDir. The on-disk cache survives restarts; the
// in-memory graph starts empty every session.
func Open(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		dir = DefaultDir
	}
	store, err := fsstore.Open(dir)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		dir:     dir,
		store:   store,
		fp:      VersionFingerprint{},
		logger:  slog.Default(),
		workers: 1,
		graph:   graph.Graph{},
		steps:   map[trail.Key]*Step{},
	}

	for _, opt := range opts {
		opt(c)
	}

	if !c.noLedger {
		led, err := ledger.Open(filepath.Join(dir, ledger.FileName))
		if err != nil {
			return nil, err
		}
		c.ledger = led
	}
	return c, nil
}

// Close releases the ledger. The artifact files need no teardown.
func (c *Cache) Close() error {
	if c.ledger == nil {
		return nil
	}
	return c.ledger.Close()
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Reset evicts every graph entry, registered step and observation. On-disk
// artifacts are untouched; re-issuing the same chains after Reset picks the
// cached artifacts back up via Checkpoint.
func (c *Cache) Reset() {
	c.graph = graph.Graph{}
	c.steps = map[trail.Key]*Step{}
	c.observed = nil
}

// Step wraps target as a graph node named by target.Name, with raw args and
// kwargs (not yet chained to any parent), and registers it.
func (c *Cache) Step(target Func, args []trail.Value, kwargs map[string]trail.Value) *Step {
	t := trail.New(target.Name, args, kwargs)
	return c.register(t, target, args, kwargs)
}

func (c *Cache) register(t trail.Trail, target Func, args []trail.Value, kwargs map[string]trail.Value) *Step {
	s := &Step{
		cache:  c,
		trail:  t,
		key:    t.Key(),
		target: target,
		args:   args,
		kwargs: kwargs,
	}
	c.steps[s.key] = s
	s.Recompute()
	return s
}

// Record is the eager, non-memoized escape hatch: it resolves any dependency
// Ref among args to its evaluated value, invokes target directly, appends
// the call to the audit log, and returns the result. The graph and the disk
// cache are never touched.
func (c *Cache) Record(ctx context.Context, target Func, args []trail.Value, kwargs map[string]trail.Value) (trail.Value, error) {
	resolved := make([]trail.Value, len(args))
	for i, a := range args {
		v, err := c.resolveEager(ctx, a)
		if err != nil {
			return nil, err
		}
		resolved[i] = v
	}
	resolvedKwargs := make(map[string]trail.Value, len(kwargs))
	for k, v := range kwargs {
		rv, err := c.resolveEager(ctx, v)
		if err != nil {
			return nil, err
		}
		resolvedKwargs[k] = rv
	}

	result, err := target.Call(ctx, resolved, resolvedKwargs)
	if err != nil {
		return nil, err
	}

	c.observed = append(c.observed, observation{
		name:   target.Name,
		args:   args,
		kwargs: kwargs,
		result: result,
	})
	if c.ledger != nil {
		if err := c.appendRecordLedger(ctx, target.Name, args, kwargs, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// resolveEager evaluates a Ref argument through its registered step; any
// other value passes through untouched.
func (c *Cache) resolveEager(ctx context.Context, v trail.Value) (trail.Value, error) {
	ref, ok := v.(trail.Ref)
	if !ok {
		return v, nil
	}
	step, ok := c.steps[ref.Trail.Key()]
	if !ok {
		panic(fmt.Sprintf("trailcache: trail %q not registered", ref.Trail.Func))
	}
	return step.Get(ctx)
}

func (c *Cache) appendRecordLedger(ctx context.Context, name string, args []trail.Value, kwargs map[string]trail.Value, result trail.Value) error {
	argsJSON, err := trail.MarshalCanonical(trail.List(args))
	if err != nil {
		return fmt.Errorf("record %q: %w", name, err)
	}
	kwargsJSON, err := trail.MarshalCanonical(trail.Map(kwargs))
	if err != nil {
		return fmt.Errorf("record %q: %w", name, err)
	}
	resultJSON, err := trail.MarshalCanonical(result)
	if err != nil {
		return fmt.Errorf("record %q: %w", name, err)
	}
	return c.ledger.AppendRecord(ctx, name, string(argsJSON), string(kwargsJSON), string(resultJSON))
}

// Summary renders the audit log, one "name(args) = result" line per Record
// call in insertion order. Dependency arguments render as the referenced
// step's function name.
func (c *Cache) Summary() string {
	lines := make([]string, 0, len(c.observed))
	for _, obs := range c.observed {
		parts := make([]string, len(obs.args))
		for i, a := range obs.args {
			parts[i] = trail.Render(a)
		}
		lines = append(lines, fmt.Sprintf("%s(%s) = %s",
			obs.name, strings.Join(parts, ", "), trail.Render(obs.result)))
	}
	return strings.Join(lines, "\n")
}

// Store persists value as the artifact for t under the trail's path digest
// with the given suffix.
func (c *Cache) Store(t trail.Trail, suffix string, value trail.Value) error {
	name, err := trail.PathDigest(t, suffix)
	if err != nil {
		return err
	}
	data, err := trail.MarshalCanonical(value)
	if err != nil {
		return fmt.Errorf("serialize artifact for %q: %w", t.Func, err)
	}
	return c.store.WriteBlob(name, data)
}

// Load reads back an artifact previously persisted with Store.
func (c *Cache) Load(t trail.Trail, suffix string) (trail.Value, error) {
	name, err := trail.PathDigest(t, suffix)
	if err != nil {
		return nil, err
	}
	data, err := c.store.ReadBlob(name)
	if err != nil {
		return nil, err
	}
	v, err := trail.UnmarshalCanonical(data)
	if err != nil {
		return nil, fmt.Errorf("decode artifact for %q: %w", t.Func, err)
	}
	return v, nil
}

// LoadHash returns the stored content hash for t. ok is false when the
// trail was never checkpointed; that is not an error.
func (c *Cache) LoadHash(t trail.Trail) (digest string, ok bool, err error) {
	name, err := trail.PathDigest(t)
	if err != nil {
		return "", false, err
	}
	return c.store.ReadHash(name)
}

// StoreHash writes the content hash manifest for t, overwriting any
// previous value.
func (c *Cache) StoreHash(t trail.Trail, digest string) error {
	name, err := trail.PathDigest(t)
	if err != nil {
		return err
	}
	return c.store.WriteHash(name, digest)
}
