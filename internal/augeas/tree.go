// Package augeas implements a small path-addressed configuration tree in the
// style of Augeas.
//
// Files are parsed by a Lens into nodes below /files/<path>. Files which a
// lens fails to parse are reported below /augeas/files/<path>/error, with
// the children message, line, char, pos and lens describing the failure.
//
// Path expressions support:
//
//	/a/b       child steps
//	/a/b[2]    1-based position among siblings matching the step
//	/a/*       any label
//	/a//b      b at any depth below a
package augeas

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoMatch is returned by Get when the path does not match any node.
var ErrNoMatch = errors.New("no matching node")

type node struct {
	label    string
	value    string
	hasValue bool
	parent   *node
	children []*node
}

func (n *node) appendChild(label string) *node {
	c := &node{label: label, parent: n}
	n.children = append(n.children, c)
	return c
}

func (n *node) appendValue(label, value string) *node {
	c := n.appendChild(label)
	c.value = value
	c.hasValue = true
	return c
}

func (n *node) removeChild(c *node) {
	for i, child := range n.children {
		if child == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

// position returns the 1-based index of n among its siblings with the same
// label and the number of such siblings.
func (n *node) position() (int, int) {
	if n.parent == nil {
		return 1, 1
	}
	pos, count := 0, 0
	for _, s := range n.parent.children {
		if s.label != n.label {
			continue
		}
		count++
		if s == n {
			pos = count
		}
	}
	return pos, count
}

func (n *node) path() string {
	if n.parent == nil {
		return ""
	}
	seg := n.label
	if pos, count := n.position(); count > 1 {
		seg += "[" + strconv.Itoa(pos) + "]"
	}
	return n.parent.path() + "/" + seg
}

// Tree is an in-memory configuration tree. It is not safe for concurrent use.
type Tree struct {
	root *node
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{root: &node{}}
}

type step struct {
	descendant bool
	label      string
	index      int
}

func parsePath(path string) ([]step, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("invalid path %q: must be absolute", path)
	}

	var steps []step
	rest := path
	for len(rest) > 0 {
		var s step
		if strings.HasPrefix(rest, "//") {
			s.descendant = true
			rest = rest[2:]
		} else if strings.HasPrefix(rest, "/") {
			rest = rest[1:]
		} else {
			return nil, fmt.Errorf("invalid path %q: expected '/'", path)
		}

		end := strings.IndexAny(rest, "/[")
		if end < 0 {
			end = len(rest)
		}
		s.label = rest[:end]
		rest = rest[end:]
		if s.label == "" {
			if len(rest) == 0 && !s.descendant && len(steps) == 0 {
				// "/" on its own addresses the root
				return steps, nil
			}
			return nil, fmt.Errorf("invalid path %q: empty label", path)
		}

		if strings.HasPrefix(rest, "[") {
			closing := strings.Index(rest, "]")
			if closing < 0 {
				return nil, fmt.Errorf("invalid path %q: unterminated predicate", path)
			}
			idx, err := strconv.Atoi(rest[1:closing])
			if err != nil || idx < 1 {
				return nil, fmt.Errorf("invalid path %q: bad position %q", path, rest[1:closing])
			}
			s.index = idx
			rest = rest[closing+1:]
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func (s step) matches(n *node) bool {
	return s.label == "*" || s.label == n.label
}

// selectChildren returns the children of parent matched by s, applying the
// positional predicate per parent.
func (s step) selectChildren(parent *node) []*node {
	var out []*node
	for _, c := range parent.children {
		if s.matches(c) {
			out = append(out, c)
		}
	}
	if s.index > 0 {
		if s.index > len(out) {
			return nil
		}
		return out[s.index-1 : s.index]
	}
	return out
}

func descendantsOrSelf(n *node, out []*node) []*node {
	out = append(out, n)
	for _, c := range n.children {
		out = descendantsOrSelf(c, out)
	}
	return out
}

func (t *Tree) match(path string) ([]*node, error) {
	steps, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	current := []*node{t.root}
	for _, s := range steps {
		seen := make(map[*node]bool)
		var next []*node
		for _, ctx := range current {
			parents := []*node{ctx}
			if s.descendant {
				parents = descendantsOrSelf(ctx, nil)
			}
			for _, p := range parents {
				for _, m := range s.selectChildren(p) {
					if !seen[m] {
						seen[m] = true
						next = append(next, m)
					}
				}
			}
		}
		current = next
	}
	return current, nil
}

// Match returns the paths of all nodes matching path in document order.
func (t *Tree) Match(path string) ([]string, error) {
	nodes, err := t.match(path)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(nodes))
	for _, n := range nodes {
		paths = append(paths, n.path())
	}
	return paths, nil
}

// Get returns the value of the node at path. It fails unless path matches
// exactly one node. A node without a value yields an empty string.
func (t *Tree) Get(path string) (string, error) {
	nodes, err := t.match(path)
	if err != nil {
		return "", err
	}
	switch len(nodes) {
	case 0:
		return "", fmt.Errorf("%s: %w", path, ErrNoMatch)
	case 1:
		return nodes[0].value, nil
	default:
		return "", fmt.Errorf("%s: path matches %d nodes", path, len(nodes))
	}
}

// Set assigns value to the node at path, creating missing nodes. The path
// may not contain wildcards or descendant steps.
func (t *Tree) Set(path, value string) error {
	n, err := t.create(path)
	if err != nil {
		return err
	}
	n.value = value
	n.hasValue = true
	return nil
}

// Remove deletes every node matching path together with its children and
// returns the number of nodes removed.
func (t *Tree) Remove(path string) (int, error) {
	nodes, err := t.match(path)
	if err != nil {
		return 0, err
	}
	for _, n := range nodes {
		if n.parent != nil {
			n.parent.removeChild(n)
		}
	}
	return len(nodes), nil
}

func (t *Tree) create(path string) (*node, error) {
	steps, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	cur := t.root
	for _, s := range steps {
		if s.descendant || s.label == "*" {
			return nil, fmt.Errorf("cannot create %q: path must be concrete", path)
		}
		existing := step{label: s.label}.selectChildren(cur)
		idx := s.index
		if idx == 0 {
			idx = 1
		}
		switch {
		case idx <= len(existing):
			cur = existing[idx-1]
		case idx == len(existing)+1:
			cur = cur.appendChild(s.label)
		default:
			return nil, fmt.Errorf("cannot create %q: position %d out of range", path, idx)
		}
	}
	return cur, nil
}

// attach grafts the children of src below path, replacing whatever was
// there before.
func (t *Tree) attach(path string, src *node) error {
	if _, err := t.Remove(path); err != nil {
		return err
	}
	dst, err := t.create(path)
	if err != nil {
		return err
	}
	for _, c := range src.children {
		c.parent = dst
		dst.children = append(dst.children, c)
	}
	return nil
}
