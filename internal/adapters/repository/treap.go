package repository

import (
	"math/rand/v2"

	"github.com/okian/wpmrank/internal/domain/model"
)

// Order-statistic treap over standing rows, one node per user.
//
// BST order is model.Before, so an in-order traversal yields the
// leaderboard from best to worst. Subtree sizes give O(log n) position
// lookups and counts.

type node struct {
	key   model.BestScore
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, key model.BestScore) *node {
	if n == nil {
		return &node{key: key, prio: rand.Uint64(), size: 1}
	}
	if model.Before(key, n.key) {
		n.left = insert(n.left, key)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, key)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, key model.BestScore) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.key.Username == key.Username:
		// Rotate the higher-priority child up until the node is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, key)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, key)
		}
	case model.Before(key, n.key):
		n.left = deleteNode(n.left, key)
	default:
		n.right = deleteNode(n.right, key)
	}
	fix(n)
	return n
}

// selectAt returns the node at 0-based in-order position i.
func selectAt(n *node, i int) *node {
	for n != nil {
		ls := nsize(n.left)
		switch {
		case i < ls:
			n = n.left
		case i == ls:
			return n
		default:
			i -= ls + 1
			n = n.right
		}
	}
	return nil
}

// countAbove counts rows with wpm strictly greater than wpm. Those rows
// form a prefix of the in-order sequence.
func countAbove(n *node, wpm float64) int {
	count := 0
	for n != nil {
		if n.key.WPM > wpm {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// walk visits rows in order until fn returns false.
func walk(n *node, fn func(model.BestScore) bool) bool {
	if n == nil {
		return true
	}
	if !walk(n.left, fn) {
		return false
	}
	if !fn(n.key) {
		return false
	}
	return walk(n.right, fn)
}

// walkFrom is walk starting at 0-based position skip, using subtree sizes
// to avoid visiting the skipped rows.
func walkFrom(n *node, skip int, fn func(model.BestScore) bool) bool {
	if n == nil {
		return true
	}
	ls := nsize(n.left)
	switch {
	case skip < ls:
		if !walkFrom(n.left, skip, fn) {
			return false
		}
	case skip > ls:
		return walkFrom(n.right, skip-ls-1, fn)
	}
	if !fn(n.key) {
		return false
	}
	return walk(n.right, fn)
}
