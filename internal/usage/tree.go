package usage

import (
	"fmt"
	"io"
	"strings"

	"github.com/cleanigo/cleanigo/internal/core"
)

// maxChildrenShown bounds entries printed per level to keep output
// manageable.
const maxChildrenShown = 20

// PrintTree writes a plain-text tree of the directory rollup. Uses ASCII
// connectors for compatibility with legacy consoles. maxDepth 0 means
// unlimited; directories below minSize are hidden.
func PrintTree(w io.Writer, rep *Report, maxDepth int, minSize int64) {
	if rep == nil || rep.Root == nil {
		fmt.Fprintln(w, "  No data to display.")
		return
	}

	fmt.Fprintf(w, "  Disk usage: %s\n", rep.Root.Path)
	fmt.Fprintf(w, "  Total size: %s in %d files\n", core.FormatSize(rep.TotalBytes), rep.FileCount)
	fmt.Fprintln(w, "  "+strings.Repeat("-", 58))
	printNode(w, rep.Root, "", true, 0, maxDepth, minSize)
	fmt.Fprintln(w, "  "+strings.Repeat("-", 58))
}

func printNode(w io.Writer, n *Node, prefix string, isLast bool, depth, maxDepth int, minSize int64) {
	if maxDepth > 0 && depth > maxDepth {
		return
	}
	if minSize > 0 && n.Size < minSize && depth > 0 {
		return
	}

	connector := "+-- "
	childPrefix := "|   "
	if isLast {
		connector = "\\-- "
		childPrefix = "    "
	}
	if depth == 0 {
		connector = ""
		childPrefix = ""
	}

	fmt.Fprintf(w, "  %s%s%s/  %s\n", prefix, connector, n.Name, core.FormatSize(n.Size))

	children := n.Dirs
	if len(children) > maxChildrenShown {
		for i, c := range children[:maxChildrenShown] {
			printNode(w, c, prefix+childPrefix, i == maxChildrenShown-1, depth+1, maxDepth, minSize)
		}
		fmt.Fprintf(w, "  %s\\-- ... and %d more entries\n", prefix+childPrefix, len(children)-maxChildrenShown)
		return
	}
	for i, c := range children {
		printNode(w, c, prefix+childPrefix, i == len(children)-1, depth+1, maxDepth, minSize)
	}
}
