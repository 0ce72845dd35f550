package depot

import "fmt"

// GetView returns a lazy iteration over every entity that has all listed
// components, carries all withTags, and carries none of the withoutTags.
// Evaluation is deferred: the matching archetypes and their sizes are pinned
// when iteration begins, not when the view is built.
func (r *Registry) GetView(comps []Component, withTags []Tag, withoutTags []Tag) *Cursor {
	node := newCompositeNode(OpAnd, comps, withTags)
	if len(withoutTags) > 0 {
		node.children = append(node.children, newCompositeNode(OpNot, nil, withoutTags))
	}
	cursor := newCursor(node, r)

	required := nodeMask(r, comps, withTags)
	forbidden := nodeMask(r, nil, withoutTags)
	cursor.cacheKey = fmt.Sprintf("%v|%v", required, forbidden)
	return cursor
}

// matchArchetypes evaluates the query over all archetypes, consulting the
// view cache when the predicate has a cache key. A cached list is reused
// only while no archetype has been forged since it was built. Caller holds
// the structural lock (shared is enough).
func (r *Registry) matchArchetypes(q QueryNode, key string) []*ArchetypeImpl {
	gen := len(r.archetypes.asSlice)
	if key != "" {
		r.cacheMu.Lock()
		if idx, ok := r.viewCache.GetIndex(key); ok {
			if ml := r.viewCache.GetItem(idx); ml.gen == gen {
				r.cacheMu.Unlock()
				return ml.archetypes
			}
		}
		r.cacheMu.Unlock()
	}

	matched := make([]*ArchetypeImpl, 0)
	for _, arch := range r.archetypes.asSlice {
		if q.Evaluate(arch, r) {
			matched = append(matched, arch)
		}
	}

	if key != "" {
		r.cacheMu.Lock()
		if idx, ok := r.viewCache.GetIndex(key); ok {
			*r.viewCache.GetItem(idx) = matchList{gen: gen, archetypes: matched}
		} else {
			// At capacity the list simply goes uncached.
			_, _ = r.viewCache.Register(key, matchList{gen: gen, archetypes: matched})
		}
		r.cacheMu.Unlock()
	}
	return matched
}
