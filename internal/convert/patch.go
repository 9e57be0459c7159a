package convert

import (
	"github.com/conda/conda-recipe-manager/internal/parser"
	"github.com/conda/conda-recipe-manager/internal/parsetree"
)

func parsePath(path string) parsetree.Path {
	return parsetree.ParsePath(path)
}

func patchReplace(path string, value any) parser.PatchOp {
	return parser.PatchOp{Op: parser.OpReplace, Path: path, Value: value, HasValue: true}
}

func patchAdd(path string, value any) parser.PatchOp {
	return parser.PatchOp{Op: parser.OpAdd, Path: path, Value: value, HasValue: true}
}

func patchRemove(path string) parser.PatchOp {
	return parser.PatchOp{Op: parser.OpRemove, Path: path}
}
