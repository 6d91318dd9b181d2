package imports

import (
	"path"
	"sort"
	"strings"

	"github.com/typst/package-check/internal/sources"
)

// Node is one source file participating in the import graph.
type Node struct {
	Path       string
	Directives []Directive
}

// Edge is a resolved file-to-file import.
type Edge struct {
	From, To  int
	Directive Directive
}

// UnresolvedRef is an import whose target does not exist in the package.
type UnresolvedRef struct {
	From      int
	Directive Directive
	Resolved  string // the cleaned path that was looked up, for the message
}

// ExternalRef is a reference to another registry package.
type ExternalRef struct {
	From      int
	Directive Directive
	Spec      *sources.PackageSpec
	Found     bool // only meaningful when resolved against a registry
}

// MalformedRef is a package reference that could not be parsed at all.
type MalformedRef struct {
	From      int
	Directive Directive
	Reason    string
}

// Cycle is one distinct import cycle. Members are sorted; Anchor is the
// lexicographically smallest member, which keys the cycle deterministically.
type Cycle struct {
	Anchor  string
	Members []string
}

// Graph is the directed import graph reachable from a package's entrypoint.
// Nodes are arena-indexed so traversal never recurses through owning
// pointers.
type Graph struct {
	Nodes       []Node
	Edges       []Edge
	Unresolved  []UnresolvedRef
	External    []ExternalRef
	Malformed   []MalformedRef
	Cycles      []Cycle
	Unreachable []string // .typ files never imported and not the entrypoint

	index      map[string]int
	entrypoint int
}

// NodeIndex returns the arena index for a path.
func (g *Graph) NodeIndex(p string) (int, bool) {
	i, ok := g.index[p]
	return i, ok
}

// Entrypoint returns the arena index of the entrypoint node.
func (g *Graph) Entrypoint() int { return g.entrypoint }

// Resolve builds the import graph by reachability traversal from entrypoint.
// registry may be nil (plain directory mode), in which case external package
// references are recorded but not checked for existence.
func Resolve(tree *sources.Tree, entrypoint string, registry *sources.Registry) *Graph {
	g := &Graph{index: make(map[string]int)}

	g.entrypoint = g.addNode(entrypoint)
	queue := []int{g.entrypoint}

	for len(queue) > 0 {
		from := queue[0]
		queue = queue[1:]

		content, ok := tree.File(g.Nodes[from].Path)
		if !ok {
			continue
		}
		directives := Parse(content)
		g.Nodes[from].Directives = directives

		for _, d := range directives {
			switch d.Kind {
			case KindPackage:
				spec, err := sources.ParseSpec(d.Target)
				if err != nil {
					g.Malformed = append(g.Malformed, MalformedRef{
						From: from, Directive: d, Reason: err.Error(),
					})
					continue
				}
				found := registry != nil && registry.Has(spec)
				g.External = append(g.External, ExternalRef{
					From: from, Directive: d, Spec: spec, Found: found,
				})

			case KindRelative:
				target := resolveRelative(g.Nodes[from].Path, d.Target)
				if target == "" || !tree.Has(target) {
					g.Unresolved = append(g.Unresolved, UnresolvedRef{
						From: from, Directive: d, Resolved: target,
					})
					continue
				}
				to, existed := g.index[target]
				if !existed {
					to = g.addNode(target)
					queue = append(queue, to)
				}
				g.Edges = append(g.Edges, Edge{From: from, To: to, Directive: d})
			}
		}
	}

	g.Cycles = g.findCycles()
	g.Unreachable = g.findUnreachable(tree)
	return g
}

func (g *Graph) addNode(p string) int {
	g.index[p] = len(g.Nodes)
	g.Nodes = append(g.Nodes, Node{Path: p})
	return len(g.Nodes) - 1
}

// resolveRelative joins an import target onto the importing file's directory.
// Returns "" when the target escapes the package root.
func resolveRelative(from, target string) string {
	var joined string
	if strings.HasPrefix(target, "/") {
		// Absolute paths are rooted at the package root.
		joined = path.Clean(strings.TrimPrefix(target, "/"))
	} else {
		joined = path.Join(path.Dir(from), target)
	}
	if joined == ".." || strings.HasPrefix(joined, "../") {
		return ""
	}
	return joined
}

// findCycles runs an iterative Tarjan SCC pass over the arena. Every strongly
// connected component with more than one member, or with a self-loop, is one
// distinct cycle; it is reported exactly once regardless of how many edges
// participate.
func (g *Graph) findCycles() []Cycle {
	n := len(g.Nodes)
	adj := make([][]int, n)
	selfLoop := make([]bool, n)
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e.To)
		if e.From == e.To {
			selfLoop[e.From] = true
		}
	}

	const unvisited = -1
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = unvisited
	}

	var (
		cycles  []Cycle
		stack   []int
		counter int
	)

	type frame struct {
		v, next int
	}

	for root := 0; root < n; root++ {
		if index[root] != unvisited {
			continue
		}

		frames := []frame{{v: root}}
		index[root], low[root] = counter, counter
		counter++
		stack = append(stack, root)
		onStack[root] = true

		for len(frames) > 0 {
			f := &frames[len(frames)-1]
			if f.next < len(adj[f.v]) {
				w := adj[f.v][f.next]
				f.next++
				switch {
				case index[w] == unvisited:
					index[w], low[w] = counter, counter
					counter++
					stack = append(stack, w)
					onStack[w] = true
					frames = append(frames, frame{v: w})
				case onStack[w]:
					if index[w] < low[f.v] {
						low[f.v] = index[w]
					}
				}
				continue
			}

			// All successors handled: close the component if v is its root.
			v := f.v
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := frames[len(frames)-1].v
				if low[v] < low[parent] {
					low[parent] = low[v]
				}
			}
			if low[v] != index[v] {
				continue
			}

			var members []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				members = append(members, g.Nodes[w].Path)
				if w == v {
					break
				}
			}
			if len(members) > 1 || selfLoop[v] {
				sort.Strings(members)
				cycles = append(cycles, Cycle{Anchor: members[0], Members: members})
			}
		}
	}

	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Anchor < cycles[j].Anchor })
	return cycles
}

// findUnreachable lists .typ files present in the tree that the traversal
// never visited. Unused files are not necessarily wrong, so callers surface
// them as hints.
func (g *Graph) findUnreachable(tree *sources.Tree) []string {
	var unreachable []string
	for _, p := range tree.Paths() {
		if !strings.HasSuffix(p, ".typ") {
			continue
		}
		if _, visited := g.index[p]; !visited {
			unreachable = append(unreachable, p)
		}
	}
	return unreachable
}
