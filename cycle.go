package container

import (
	"context"
	"fmt"
	"strings"
)

type cycle int

const cycleKey cycle = 0

// resolutionPath is one step of the chain of keys being resolved. Every nested resolution
// adds a node pointing at its parent, so concurrent branches of the same resolution each
// see only their own ancestors.
type resolutionPath struct {
	key    Key
	parent *resolutionPath
}

func (p *resolutionPath) String() string {
	var keys []string
	for n := p; n != nil; n = n.parent {
		keys = append(keys, n.key.String())
	}
	for l, r := 0, len(keys)-1; l < r; l, r = l+1, r-1 {
		keys[l], keys[r] = keys[r], keys[l]
	}
	return strings.Join(keys, " -> ")
}

func (i *Injector) enterKeyProcessing(ctx context.Context, key Key) (context.Context, error) {
	parent, _ := ctx.Value(cycleKey).(*resolutionPath)
	for n := parent; n != nil; n = n.parent {
		if n.key == key {
			return nil, &ConfigurationError{
				Message:     "cyclic dependency error resolving key",
				Key:         key,
				Reason:      ErrCircularDependency,
				Status:      i.Status(),
				SourceError: fmt.Errorf("path %v -> %v", parent, key),
			}
		}
	}
	return context.WithValue(ctx, cycleKey, &resolutionPath{key: key, parent: parent}), nil
}

// staticCycles is the set of keys whose constructor dependencies lead back to themselves,
// computed for one version of the binding table.
type staticCycles struct {
	table *bindingTable
	keys  map[Key]bool
}

// cyclicKeys returns the keys of the current table that sit on a dependency cycle. Those
// keys are refused up front: two goroutines entering the same singleton cycle from opposite
// ends would otherwise wait on each other's construction lock forever.
func (i *Injector) cyclicKeys() map[Key]bool {
	table := i.table.Load()
	if sc := i.cycles.Load(); sc != nil && sc.table == table {
		return sc.keys
	}
	keys := findCycles(*table)
	i.cycles.Store(&staticCycles{table: table, keys: keys})
	return keys
}

// findCycles runs Tarjan's strongly connected components over the constructor dependency
// graph. Providers other than ConstructorProvider contribute no edges.
func findCycles(table bindingTable) map[Key]bool {
	edges := make(map[Key][]Key, len(table))
	for key, reg := range table {
		p, ok := reg.binding.Provider.(*ConstructorProvider)
		if !ok {
			continue
		}
		for _, dep := range p.Dependencies() {
			if _, bound := table[dep]; bound {
				edges[key] = append(edges[key], dep)
			}
		}
	}

	var (
		index   = map[Key]int{}
		lowlink = map[Key]int{}
		onStack = map[Key]bool{}
		stack   []Key
		next    int
		cyclic  = map[Key]bool{}
	)

	var connect func(v Key)
	connect = func(v Key) {
		index[v] = next
		lowlink[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range edges[v] {
			if _, seen := index[w]; !seen {
				connect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], index[w])
			}
		}

		if lowlink[v] != index[v] {
			return
		}
		var component []Key
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			component = append(component, w)
			if w == v {
				break
			}
		}
		if len(component) > 1 || selfLoop(edges[v], v) {
			for _, w := range component {
				cyclic[w] = true
			}
		}
	}

	for key := range edges {
		if _, seen := index[key]; !seen {
			connect(key)
		}
	}
	return cyclic
}

func selfLoop(deps []Key, key Key) bool {
	for _, d := range deps {
		if d == key {
			return true
		}
	}
	return false
}
