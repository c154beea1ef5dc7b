package render

import "github.com/yuin/goldmark/ast"

// findHeading returns the level of the heading a block sits under,
// or 1 when there is none.
func findHeading(node ast.Node) int {
	for ; node != nil && node.Kind() != ast.KindDocument; node = node.Parent() {
		for sib := node.PreviousSibling(); sib != nil; sib = sib.PreviousSibling() {
			switch sib.Kind() {
			case ast.KindHeading:
				return sib.(*ast.Heading).Level
			case ast.KindThematicBreak:
				return 1
			}
		}
	}
	return 1
}
