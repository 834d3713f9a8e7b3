package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/trailcache/trailcache/trail"
)

// Eval resolves target against g, evaluating each distinct reachable node at
// most once. Resolution is depth-first and deterministic: positional inputs
// in order, then keyword inputs in sorted key order.
//
// Target function errors propagate unmodified, wrapped with the node name.
func Eval(ctx context.Context, g Graph, target trail.Key) (trail.Value, error) {
	e := &evaluation{
		graph:   g,
		memo:    map[trail.Key]trail.Value{},
		onStack: map[trail.Key]bool{},
	}
	return e.resolve(ctx, target)
}

type evaluation struct {
	graph   Graph
	memo    map[trail.Key]trail.Value
	onStack map[trail.Key]bool
}

func (e *evaluation) resolve(ctx context.Context, key trail.Key) (trail.Value, error) {
	if v, done := e.memo[key]; done {
		return v, nil
	}

	node, ok := e.graph[key]
	if !ok {
		return nil, &ErrMissingNode{Key: key}
	}
	if e.onStack[key] {
		return nil, &ErrCycle{Name: node.Name}
	}
	e.onStack[key] = true
	defer delete(e.onStack, key)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	args, kwargs, err := e.resolveInputs(ctx, node)
	if err != nil {
		return nil, err
	}

	result, err := node.Apply(ctx, args, kwargs)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", node.Name, err)
	}

	e.memo[key] = result
	return result, nil
}

func (e *evaluation) resolveInputs(ctx context.Context, node Node) ([]trail.Value, map[string]trail.Value, error) {
	args := make([]trail.Value, len(node.Args))
	for i, in := range node.Args {
		v, err := e.resolveInput(ctx, in)
		if err != nil {
			return nil, nil, fmt.Errorf("node %q arg %d: %w", node.Name, i, err)
		}
		args[i] = v
	}

	kwargs := make(map[string]trail.Value, len(node.Kwargs))
	keys := make([]string, 0, len(node.Kwargs))
	for k := range node.Kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := e.resolveInput(ctx, node.Kwargs[k])
		if err != nil {
			return nil, nil, fmt.Errorf("node %q kwarg %q: %w", node.Name, k, err)
		}
		kwargs[k] = v
	}
	return args, kwargs, nil
}

func (e *evaluation) resolveInput(ctx context.Context, in Input) (trail.Value, error) {
	switch input := in.(type) {
	case Lit:
		return input.V, nil
	case NodeRef:
		return e.resolve(ctx, input.Key)
	default:
		return nil, fmt.Errorf("unknown input variant %T", in)
	}
}

// EvalParallel evaluates target using up to workers goroutines.
//
// Dispatch is depth-staged for determinism: the reachable subgraph is
// stratified by topological depth, and all nodes of one depth complete
// before the next depth starts. Within a depth, nodes run concurrently but
// the set dispatched is deterministic. Shared state is guarded by one mutex;
// node functions run outside it.
func EvalParallel(ctx context.Context, g Graph, target trail.Key, workers int) (trail.Value, error) {
	if workers <= 1 {
		return Eval(ctx, g, target)
	}

	depths, err := stratify(g, target)
	if err != nil {
		return nil, err
	}

	var (
		mu   sync.Mutex
		memo = map[trail.Key]trail.Value{}
	)

	for _, level := range depths {
		sem := make(chan struct{}, workers)
		errs := make([]error, len(level))
		var wg sync.WaitGroup

		for i, key := range level {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, key trail.Key) {
				defer wg.Done()
				defer func() { <-sem }()

				node := g[key]
				args, kwargs, err := gatherInputs(node, memo, &mu)
				if err != nil {
					errs[i] = err
					return
				}
				result, err := node.Apply(ctx, args, kwargs)
				if err != nil {
					errs[i] = fmt.Errorf("node %q: %w", node.Name, err)
					return
				}
				mu.Lock()
				memo[key] = result
				mu.Unlock()
			}(i, key)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	return memo[target], nil
}

// gatherInputs resolves a node's inputs from the memo of completed depths.
// Every NodeRef must already be resolved; depth staging guarantees that.
func gatherInputs(node Node, memo map[trail.Key]trail.Value, mu *sync.Mutex) ([]trail.Value, map[string]trail.Value, error) {
	mu.Lock()
	defer mu.Unlock()

	args := make([]trail.Value, len(node.Args))
	for i, in := range node.Args {
		v, err := lookupInput(in, memo)
		if err != nil {
			return nil, nil, fmt.Errorf("node %q arg %d: %w", node.Name, i, err)
		}
		args[i] = v
	}
	kwargs := make(map[string]trail.Value, len(node.Kwargs))
	for k, in := range node.Kwargs {
		v, err := lookupInput(in, memo)
		if err != nil {
			return nil, nil, fmt.Errorf("node %q kwarg %q: %w", node.Name, k, err)
		}
		kwargs[k] = v
	}
	return args, kwargs, nil
}

func lookupInput(in Input, memo map[trail.Key]trail.Value) (trail.Value, error) {
	switch input := in.(type) {
	case Lit:
		return input.V, nil
	case NodeRef:
		v, ok := memo[input.Key]
		if !ok {
			return nil, fmt.Errorf("dependency %s not yet resolved", string(input.Key))
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown input variant %T", in)
	}
}

// stratify returns the nodes reachable from target grouped by topological
// depth, shallow first. Depth of a node is one past the maximum depth of its
// dependencies. Detects cycles and missing nodes.
func stratify(g Graph, target trail.Key) ([][]trail.Key, error) {
	depth := map[trail.Key]int{}
	onStack := map[trail.Key]bool{}

	var visit func(key trail.Key) (int, error)
	visit = func(key trail.Key) (int, error) {
		if d, done := depth[key]; done {
			return d, nil
		}
		node, ok := g[key]
		if !ok {
			return 0, &ErrMissingNode{Key: key}
		}
		if onStack[key] {
			return 0, &ErrCycle{Name: node.Name}
		}
		onStack[key] = true
		defer delete(onStack, key)

		d := 0
		for _, in := range node.Args {
			if ref, ok := in.(NodeRef); ok {
				dd, err := visit(ref.Key)
				if err != nil {
					return 0, err
				}
				if dd+1 > d {
					d = dd + 1
				}
			}
		}
		for _, in := range node.Kwargs {
			if ref, ok := in.(NodeRef); ok {
				dd, err := visit(ref.Key)
				if err != nil {
					return 0, err
				}
				if dd+1 > d {
					d = dd + 1
				}
			}
		}
		depth[key] = d
		return d, nil
	}

	if _, err := visit(target); err != nil {
		return nil, err
	}

	maxDepth := 0
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}
	levels := make([][]trail.Key, maxDepth+1)
	for key, d := range depth {
		levels[d] = append(levels[d], key)
	}
	for _, level := range levels {
		sort.Slice(level, func(i, j int) bool { return level[i] < level[j] })
	}
	return levels, nil
}
