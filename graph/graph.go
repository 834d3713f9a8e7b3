// Package graph evaluates a DAG of (function, arguments) nodes bottom-up,
// resolving dependencies automatically and memoizing within one evaluation
// pass. It is the execution collaborator of the memoization layer: the
// cache builds graphs, this package runs them.
//
// The graph structure must not be mutated while an evaluation is in flight.
// Callers are expected to finish all rewiring before calling Eval; the
// package detects dangling references and cycles but not concurrent
// mutation.
package graph

import (
	"context"
	"fmt"

	"github.com/trailcache/trailcache/trail"
)

// ApplyFunc is the executable form of a node: a function applied to fully
// resolved positional and keyword arguments.
type ApplyFunc func(ctx context.Context, args []trail.Value, kwargs map[string]trail.Value) (trail.Value, error)

// Input is a sealed variant for an argument slot in a node: either a literal
// value or a reference to another node whose result fills the slot.
type Input interface {
	input() // sealed
}

// Lit is a literal argument value.
type Lit struct {
	V trail.Value
}

func (Lit) input() {}

// NodeRef names another node in the same graph. The executor resolves it
// recursively before applying the node's function.
type NodeRef struct {
	Key trail.Key
}

func (NodeRef) input() {}

// Node is one executable entry in a graph.
type Node struct {
	Name   string // function name, for error messages
	Apply  ApplyFunc
	Args   []Input
	Kwargs map[string]Input
}

// Graph maps node identity to its executable entry.
type Graph map[trail.Key]Node

// ErrCycle is returned when resolution revisits a node already on the
// resolution stack.
type ErrCycle struct {
	Name string
}

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("graph cycle through node %q", e.Name)
}

// ErrMissingNode is returned when an Input references a key absent from the
// graph.
type ErrMissingNode struct {
	Key trail.Key
}

func (e *ErrMissingNode) Error() string {
	return fmt.Sprintf("graph references unknown node %s", string(e.Key))
}
