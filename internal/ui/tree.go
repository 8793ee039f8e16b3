package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

type treeNode struct {
	children map[string]*treeNode
}

// FileTree prints slash-separated paths as an indented tree.
func FileTree(w io.Writer, paths []string) {
	root := &treeNode{children: map[string]*treeNode{}}
	for _, p := range paths {
		n := root
		for _, part := range strings.Split(p, "/") {
			if part == "" {
				continue
			}
			child, ok := n.children[part]
			if !ok {
				child = &treeNode{children: map[string]*treeNode{}}
				n.children[part] = child
			}
			n = child
		}
	}
	printTree(w, root, "")
}

func printTree(w io.Writer, n *treeNode, prefix string) {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		last := i == len(names)-1
		connector, next := "├── ", "│   "
		if last {
			connector, next = "└── ", "    "
		}
		fmt.Fprintln(w, dimStyle.Render(prefix+connector)+name)
		printTree(w, n.children[name], prefix+next)
	}
}
