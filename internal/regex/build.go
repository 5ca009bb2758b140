package regex

import (
	"fmt"

	"github.com/dekarrin/gentab/internal/automaton"
)

// Builder augments an automaton.Graph from Term ASTs, resolving named
// fragments against a cache of their own already-built sub-graphs (spec.md
// §4.A: "Ref expands a named fragment by cloning its cached NFA sub-graph").
type Builder struct {
	g         *automaton.Graph
	fragments map[string]*Term

	fragCache map[string]fragGraph
	building  map[string]bool // cycle guard, keyed by fragment name
}

type fragGraph struct {
	g          *automaton.Graph
	begin, end int
}

func NewBuilder(g *automaton.Graph, fragments map[string]*Term) *Builder {
	return &Builder{
		g:         g,
		fragments: fragments,
		fragCache: make(map[string]fragGraph),
		building:  make(map[string]bool),
	}
}

// Build augments b's graph so that every byte string matched by t traces
// some path from begin to end (spec.md §4.A contract).
func (b *Builder) Build(t *Term, begin, end int) error {
	switch t.Kind {
	case Empty:
		b.g.AddEps(begin, end)
		return nil
	case Char:
		b.g.AddTrans(begin, t.Set, end)
		return nil
	case Concat:
		mid := b.g.AddState()
		if err := b.Build(t.L, begin, mid); err != nil {
			return err
		}
		return b.Build(t.R, mid, end)
	case Choice:
		if err := b.Build(t.L, begin, end); err != nil {
			return err
		}
		return b.Build(t.R, begin, end)
	case Star:
		loopStart := b.g.AddState()
		loopEnd := b.g.AddState()
		b.g.AddEps(begin, loopStart)
		if err := b.Build(t.Inner, loopStart, loopEnd); err != nil {
			return err
		}
		b.g.AddEps(loopEnd, loopStart)
		b.g.AddEps(loopStart, end)
		return nil
	case Ref:
		return b.buildRef(t.FragmentName, begin, end)
	default:
		return fmt.Errorf("unknown regex term kind %d", t.Kind)
	}
}

func (b *Builder) buildRef(name string, begin, end int) error {
	frag, err := b.resolvedFragment(name)
	if err != nil {
		return err
	}
	remap := b.g.AppendGraph(frag.g)
	b.g.AddEps(begin, remap[frag.begin])
	b.g.AddEps(remap[frag.end], end)
	return nil
}

// resolvedFragment returns (building and caching as needed) the isolated
// sub-graph for fragment name. Fragments are resolved lazily: cyclic
// references between fragments are rejected with "fragment cycle" rather
// than left to infinite-loop, per spec.md §4.A's invitation to "detect and
// reject" what the Python source leaves undetected.
func (b *Builder) resolvedFragment(name string) (fragGraph, error) {
	if cached, ok := b.fragCache[name]; ok {
		return cached, nil
	}
	if b.building[name] {
		return fragGraph{}, fmt.Errorf("fragment cycle: %q references itself, directly or indirectly", name)
	}
	term, ok := b.fragments[name]
	if !ok {
		return fragGraph{}, fmt.Errorf("fragment not found: %q", name)
	}

	b.building[name] = true
	defer delete(b.building, name)

	sub := automaton.NewGraph()
	begin := sub.AddState()
	end := sub.AddState()
	sub.Start = begin

	subBuilder := &Builder{
		g:         sub,
		fragments: b.fragments,
		fragCache: b.fragCache,
		building:  b.building,
	}
	if err := subBuilder.Build(term, begin, end); err != nil {
		return fragGraph{}, err
	}

	fg := fragGraph{g: sub, begin: begin, end: end}
	b.fragCache[name] = fg
	return fg, nil
}
