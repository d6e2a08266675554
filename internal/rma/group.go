package rma

import (
	"fmt"
	"slices"
)

// Group is an ordered set of distinct ranks.
type Group struct {
	ranks []int
	freed bool
}

// NewGroup returns a group of the given ranks in order.
func NewGroup(ranks ...int) (*Group, error) {
	seen := make(map[int]bool, len(ranks))
	for _, r := range ranks {
		if r < 0 {
			return nil, fmt.Errorf("%w: %d", ErrBadRank, r)
		}
		if seen[r] {
			return nil, fmt.Errorf("rma: duplicate rank %d in group", r)
		}
		seen[r] = true
	}
	return &Group{ranks: slices.Clone(ranks)}, nil
}

// Incl returns the subgroup made of ranks, which must all belong to g.
func (g *Group) Incl(ranks []int) (*Group, error) {
	if g == nil || g.freed {
		return nil, ErrGroupFreed
	}
	for _, r := range ranks {
		if !g.Contains(r) {
			return nil, fmt.Errorf("rma: rank %d not in parent group", r)
		}
	}
	return NewGroup(ranks...)
}

// Size returns the number of ranks. A freed group is empty.
func (g *Group) Size() int {
	if g == nil {
		return 0
	}
	return len(g.ranks)
}

// Contains reports whether rank is a member.
func (g *Group) Contains(rank int) bool {
	if g == nil {
		return false
	}
	return slices.Contains(g.ranks, rank)
}

// Ranks returns a copy of the members in order.
func (g *Group) Ranks() []int {
	if g == nil {
		return nil
	}
	return slices.Clone(g.ranks)
}

// Free releases the group. Windows reject freed groups.
func (g *Group) Free() {
	if g == nil {
		return
	}
	g.ranks = nil
	g.freed = true
}

// Freed reports whether Free has been called.
func (g *Group) Freed() bool {
	return g != nil && g.freed
}

func (g *Group) String() string {
	if g.Freed() {
		return "group(freed)"
	}
	return fmt.Sprintf("group%v", g.Ranks())
}

// usable validates g for a Post or Start call.
func (g *Group) usable() error {
	if g == nil || g.freed {
		return ErrGroupFreed
	}
	if len(g.ranks) == 0 {
		return ErrEmptyGroup
	}
	return nil
}
