// Package depot provides query mechanisms for component-based entity systems
package depot

import (
	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
)

// Query represents a composable query interface for filtering entities
type Query interface {
	QueryNode
	And(items ...interface{}) QueryNode
	Or(items ...interface{}) QueryNode
	Not(items ...interface{}) QueryNode
}

// QueryNode represents a node in the query tree that can be evaluated
type QueryNode interface {
	Evaluate(archetype Archetype, registry *Registry) bool
}

// QueryOperation defines the logical operations for query nodes
type QueryOperation int

const (
	OpAnd QueryOperation = iota // Logical AND operation
	OpOr                        // Logical OR operation
	OpNot                       // Logical NOT operation
)

// compositeNode implements a compound query with child nodes
type compositeNode struct {
	op         QueryOperation
	children   []QueryNode
	components []Component
	tags       []Tag
}

// leafNode implements a simple query with no child nodes
type leafNode struct {
	components []Component
	tags       []Tag
}

// query implements the Query interface
type query struct {
	root QueryNode
}

// newQuery creates a new empty query
func newQuery() Query {
	return &query{}
}

// newCompositeNode creates a new composite query node with the specified operation
func newCompositeNode(op QueryOperation, components []Component, tags []Tag) *compositeNode {
	return &compositeNode{
		op:         op,
		children:   make([]QueryNode, 0),
		components: components,
		tags:       tags,
	}
}

// newLeafNode creates a new leaf query node with the specified components and tags
func newLeafNode(components []Component, tags []Tag) *leafNode {
	return &leafNode{components: components, tags: tags}
}

// nodeMask marks the bit of every component and tag named by a node.
func nodeMask(registry *Registry, components []Component, tags []Tag) mask.Mask {
	var m mask.Mask
	for _, comp := range components {
		id, err := registry.schema.Register(comp)
		if err != nil {
			panic(bark.AddTrace(err))
		}
		m.Mark(uint32(id))
	}
	for _, tag := range tags {
		id, err := registry.schema.RegisterTag(tag.name)
		if err != nil {
			panic(bark.AddTrace(err))
		}
		m.Mark(uint32(id))
	}
	return m
}

// Evaluate implements the QueryNode interface for composite nodes
func (n *compositeNode) Evaluate(archetype Archetype, registry *Registry) bool {
	m := nodeMask(registry, n.components, n.tags)
	archeMask := archetype.Table().Sig()

	switch n.op {
	case OpAnd:
		if !archeMask.ContainsAll(m) {
			return false
		}
		for _, child := range n.children {
			if !child.Evaluate(archetype, registry) {
				return false
			}
		}
		return true
	case OpOr:
		if archeMask.ContainsAny(m) {
			return true
		}
		for _, child := range n.children {
			if child.Evaluate(archetype, registry) {
				return true
			}
		}
		return false
	case OpNot:
		if len(n.children) == 0 {
			return archeMask.ContainsNone(m)
		}
		if (len(n.components) > 0 || len(n.tags) > 0) && !archeMask.ContainsNone(m) {
			return false
		}
		for _, child := range n.children {
			if child.Evaluate(archetype, registry) {
				return false
			}
		}
		return true
	}
	return false
}

// Evaluate implements the QueryNode interface for leaf nodes
func (n *leafNode) Evaluate(archetype Archetype, registry *Registry) bool {
	m := nodeMask(registry, n.components, n.tags)
	return archetype.Table().Sig().ContainsAll(m)
}

// And creates a new AND operation node with the provided items
func (q *query) And(items ...interface{}) QueryNode {
	components, tags, children := q.processItems(items...)
	node := newCompositeNode(OpAnd, components, tags)
	node.children = children
	if q.root == nil {
		q.root = node
	}
	return node
}

// Or creates a new OR operation node with the provided items
func (q *query) Or(items ...interface{}) QueryNode {
	components, tags, children := q.processItems(items...)
	node := newCompositeNode(OpOr, components, tags)
	node.children = children
	if q.root == nil {
		q.root = node
	}
	return node
}

// Not creates a new NOT operation node with the provided items
func (q *query) Not(items ...interface{}) QueryNode {
	components, tags, children := q.processItems(items...)
	node := newCompositeNode(OpNot, components, tags)
	node.children = children
	if q.root == nil {
		q.root = node
	}
	return node
}

// validateQueryItems checks if all items are of valid types for queries
func (q *query) validateQueryItems(items ...interface{}) error {
	for _, item := range items {
		switch item.(type) {
		case Component, []Component, Tag, []Tag, QueryNode, Query:
			continue
		default:
			return InvalidArgError{Item: item}
		}
	}
	return nil
}

// processItems converts the input items into components, tags, and query nodes
func (q *query) processItems(items ...interface{}) ([]Component, []Tag, []QueryNode) {
	if err := q.validateQueryItems(items...); err != nil {
		panic(bark.AddTrace(err))
	}
	components := make([]Component, 0)
	tags := make([]Tag, 0)
	children := make([]QueryNode, 0)
	for _, item := range items {
		switch v := item.(type) {
		case Component:
			components = append(components, v)
		case []Component:
			components = append(components, v...)
		case Tag:
			tags = append(tags, v)
		case []Tag:
			tags = append(tags, v...)
		case QueryNode:
			children = append(children, v)
		}
	}
	return components, tags, children
}

// Evaluate implements the QueryNode interface for the query type
func (q *query) Evaluate(archetype Archetype, registry *Registry) bool {
	if q.root == nil {
		return false
	}
	return q.root.Evaluate(archetype, registry)
}
