package parser

import (
	"reflect"

	"github.com/pingcap/parser/ast"

	"github.com/minirel/MinirelDB/common"
)

// PrintNodesVisitor dumps the node types of a statement when DEBUGGING
// output is on
type PrintNodesVisitor struct {
	depth int
}

func NewPrintNodesVisitor() *PrintNodesVisitor {
	return new(PrintNodesVisitor)
}

func (v *PrintNodesVisitor) Enter(in ast.Node) (ast.Node, bool) {
	refVal := reflect.ValueOf(in)
	common.ShPrintf(common.DEBUGGING, "%*s%v\n", v.depth*2, "", refVal.Type())
	v.depth++
	return in, false
}

func (v *PrintNodesVisitor) Leave(in ast.Node) (ast.Node, bool) {
	v.depth--
	return in, true
}
