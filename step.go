package trailcache

import (
	"context"
	"fmt"
	"strings"

	"github.com/trailcache/trailcache/graph"
	"github.com/trailcache/trailcache/trail"
)

// Step is a live handle on one graph node: a trail, the target function and
// the arguments as originally supplied. Steps are created by Cache.Step or
// by chaining and never explicitly deleted; Cache.Reset evicts them all.
type Step struct {
	cache  *Cache
	trail  trail.Trail
	key    trail.Key
	target Func
	args   []trail.Value
	kwargs map[string]trail.Value
}

// Trail returns the step's immutable identity.
func (s *Step) Trail() trail.Trail {
	return s.trail
}

// Step chains a new step onto this one: the parent trail is prepended as the
// first positional argument of target, so target receives this step's
// (eventual) result first. This is how pipeline dependencies are expressed.
func (s *Step) Step(target Func, args []trail.Value, kwargs map[string]trail.Value) *Step {
	chained := make([]trail.Value, 0, len(args)+1)
	chained = append(chained, trail.Ref{Trail: s.trail})
	chained = append(chained, args...)

	t := trail.New(target.Name, chained, kwargs)
	return s.cache.register(t, target, chained, kwargs)
}

// Recompute (re)installs this step's executable entry as "apply target to
// the trail's arguments", undoing any prior checkpoint substitution.
// Idempotent; callable any number of times.
func (s *Step) Recompute() {
	args := make([]graph.Input, len(s.trail.Args))
	for i, a := range s.trail.Args {
		args[i] = toInput(a)
	}
	kwargs := make(map[string]graph.Input, len(s.trail.Kwargs))
	for k, v := range s.trail.Kwargs {
		kwargs[k] = toInput(v)
	}
	s.cache.graph[s.key] = graph.Node{
		Name:   s.target.Name,
		Apply:  s.target.Call,
		Args:   args,
		Kwargs: kwargs,
	}
}

func toInput(v trail.Value) graph.Input {
	if ref, ok := v.(trail.Ref); ok {
		return graph.NodeRef{Key: ref.Trail.Key()}
	}
	return graph.Lit{V: v}
}

// Get evaluates the shared graph rooted at this step. The executor resolves
// the full upstream chain, evaluating each distinct node at most once per
// call. Target function errors propagate unmodified.
func (s *Step) Get(ctx context.Context) (trail.Value, error) {
	return graph.EvalParallel(ctx, s.cache.graph, s.key, s.cache.workers)
}

// Previous returns the steps this one depends on: positional dependency
// slots in order, then keyword slots in canonical key order. Every
// dependency trail must be registered; a miss means the trail was built by
// hand rather than through the step API, which is a programming error.
func (s *Step) Previous() []*Step {
	deps := s.trail.Deps()
	steps := make([]*Step, len(deps))
	for i, dep := range deps {
		prev, ok := s.cache.steps[dep.Key()]
		if !ok {
			panic(fmt.Sprintf("trailcache: trail %q not registered", dep.Func))
		}
		steps[i] = prev
	}
	return steps
}

// HasDeps reports whether any argument slot references an upstream step.
func (s *Step) HasDeps() bool {
	return s.trail.HasDeps()
}

// Hash computes the step's content-validity hash: a digest over the trail
// and the target's behavior fingerprint, prefixed by the hashes of all
// direct dependencies in Previous order. The chaining makes the hash a
// Merkle-style composite: any change anywhere upstream changes every
// downstream hash.
//
// This hash is the staleness token compared by Checkpoint. It is
// independent of the path digest that names the step's files.
func (s *Step) Hash() (string, error) {
	fingerprint, err := s.cache.fp.Fingerprint(s.target)
	if err != nil {
		return "", fmt.Errorf("hash %q: %w", s.target.Name, err)
	}
	canonical, err := s.trail.Canonical()
	if err != nil {
		return "", fmt.Errorf("hash %q: %w", s.target.Name, err)
	}

	payload := make([]byte, 0, len(canonical)+1+len(fingerprint))
	payload = append(payload, canonical...)
	payload = append(payload, 0x00)
	payload = append(payload, fingerprint...)
	own := trail.ContentDigest(trail.DomainStep, payload)

	if !s.HasDeps() {
		return own, nil
	}
	var prefix strings.Builder
	for _, prev := range s.Previous() {
		ph, err := prev.Hash()
		if err != nil {
			return "", err
		}
		prefix.WriteString(ph)
	}
	return prefix.String() + own, nil
}

// Checkpoint validates this step's cached artifact against its current
// hash. On mismatch, missing manifest, or force, the step is recomputed
// from scratch and the result and hash are persisted. In every case the
// step's graph entry is then replaced with a disk load, so future
// evaluations (including by downstream dependents) short-circuit to the
// artifact store.
//
// Returns the step to permit chaining.
func (s *Step) Checkpoint(ctx context.Context, force bool) (*Step, error) {
	hash, err := s.Hash()
	if err != nil {
		return nil, err
	}

	stored, ok, err := s.cache.LoadHash(s.trail)
	if err != nil {
		return nil, err
	}

	stale := !ok || stored != hash
	recomputed := false
	if stale || force {
		s.cache.logger.Debug("checkpoint recompute",
			"func", s.target.Name, "stale", stale, "forced", force)

		s.Recompute()
		result, err := s.Get(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Store(s.trail, ArtifactSuffix, result); err != nil {
			return nil, err
		}
		if err := s.cache.StoreHash(s.trail, hash); err != nil {
			return nil, err
		}
		recomputed = true
	} else {
		s.cache.logger.Debug("checkpoint hit", "func", s.target.Name)
	}

	// Replace the calculation with a load of the cached artifact.
	s.cache.graph[s.key] = graph.Node{
		Name: s.target.Name,
		Apply: func(ctx context.Context, _ []trail.Value, _ map[string]trail.Value) (trail.Value, error) {
			return s.cache.Load(s.trail, ArtifactSuffix)
		},
	}

	if s.cache.ledger != nil {
		if err := s.cache.ledger.AppendCheckpoint(ctx, string(s.key), hash, recomputed); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Record runs this step's function eagerly and uncached through
// Cache.Record, bypassing the graph entirely.
func (s *Step) Record(ctx context.Context) (trail.Value, error) {
	return s.cache.Record(ctx, s.target, s.args, s.kwargs)
}

// Prepr builds a human-readable chained representation of this step and its
// ancestry, dependency slots rendered as "*", joined by "<-" walking back
// through Previous recursively.
func (s *Step) Prepr() string {
	args := make([]string, len(s.trail.Args))
	for i, a := range s.trail.Args {
		if _, ok := a.(trail.Ref); ok {
			args[i] = "*"
		} else {
			args[i] = trail.Render(a)
		}
	}
	argPart := strings.Join(args, ", ")

	kwargs := make([]string, 0, len(s.trail.Kwargs))
	for _, k := range trail.Map(s.trail.Kwargs).SortedKeys() {
		kwargs = append(kwargs, k+"="+trail.Render(s.trail.Kwargs[k]))
	}
	kwargPart := strings.Join(kwargs, ",")

	var rendered string
	switch {
	case argPart == "" && kwargPart == "":
		rendered = s.trail.Func
	case argPart != "" && kwargPart != "":
		rendered = fmt.Sprintf("%s(%s, %s)", s.trail.Func, argPart, kwargPart)
	default:
		rendered = fmt.Sprintf("%s(%s%s)", s.trail.Func, argPart, kwargPart)
	}

	path := []string{rendered}
	for _, prev := range s.Previous() {
		path = append(path, prev.Prepr())
	}
	return strings.Join(path, "<-")
}
