// Package parser implements the recipe manager's mutation layer over
// a parse tree (C6): RFC 6902-flavored JSON-Patch operations, regex
// search-and-replace, variable/selector/dependency convenience
// wrappers, and diffing against the tree's initial state.
package parser

import (
	"fmt"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
	"github.com/conda/conda-recipe-manager/internal/parsetree"
)

// Op identifies one of the six JSON-Patch operation kinds this parser
// supports (spec.md Sec. 4.5).
type Op string

const (
	OpAdd     Op = "add"
	OpRemove  Op = "remove"
	OpReplace Op = "replace"
	OpMove    Op = "move"
	OpCopy    Op = "copy"
	OpTest    Op = "test"
)

var knownOps = map[Op]bool{OpAdd: true, OpRemove: true, OpReplace: true, OpMove: true, OpCopy: true, OpTest: true}

// PatchOp is one JSON-Patch operation payload. HasValue/HasFrom track
// whether Value/From were actually supplied, since a Go "zero value"
// (empty string, nil) is also a legal patch value.
type PatchOp struct {
	Op       Op
	Path     string
	From     string
	HasFrom  bool
	Value    any
	HasValue bool
}

// validate checks op against the fixed JSON-Patch schema (spec.md Sec.
// 4.5): op must be a known kind; add/replace/test require a value;
// move/copy require a from.
func validate(op PatchOp) error {
	if !knownOps[op.Op] {
		return &crmerrors.JSONPatchValidationException{Op: string(op.Op), Message: "unknown op"}
	}
	if op.Path == "" {
		return &crmerrors.JSONPatchValidationException{Op: string(op.Op), Message: "path must not be empty"}
	}
	switch op.Op {
	case OpAdd, OpReplace, OpTest:
		if !op.HasValue {
			return &crmerrors.JSONPatchValidationException{Op: string(op.Op), Message: "value is required"}
		}
	case OpMove, OpCopy:
		if !op.HasFrom {
			return &crmerrors.JSONPatchValidationException{Op: string(op.Op), Message: "from is required"}
		}
	}
	return nil
}

// Patch applies one JSON-Patch operation to the tree. It returns true
// on success (or, for "test", on a matching comparison) and a typed
// error when the operation is invalid or cannot be applied.
func (p *Parser) Patch(op PatchOp) (bool, error) {
	if err := validate(op); err != nil {
		return false, err
	}
	path := parsetree.ParsePath(op.Path)

	switch op.Op {
	case OpAdd:
		if err := p.addOrSet(path, op.Value); err != nil {
			return false, err
		}
		p.markModified()
		return true, nil
	case OpReplace:
		if _, ok := p.Tree.Find(path); !ok {
			return false, &crmerrors.JSONPatchValidationException{Op: "replace", Message: "path does not exist: " + op.Path}
		}
		if err := p.addOrSet(path, op.Value); err != nil {
			return false, err
		}
		p.markModified()
		return true, nil
	case OpRemove:
		if err := p.remove(path); err != nil {
			return false, err
		}
		p.markModified()
		return true, nil
	case OpTest:
		cur, err := p.valueAt(path)
		if err != nil {
			return false, err
		}
		return deepEqual(cur, op.Value), nil
	case OpMove:
		fromPath := parsetree.ParsePath(op.From)
		val, comment, err := p.snapshot(fromPath)
		if err != nil {
			return false, err
		}
		if err := p.addOrSetWithComment(path, val, comment); err != nil {
			return false, err
		}
		if err := p.remove(fromPath); err != nil {
			return false, err
		}
		p.markModified()
		return true, nil
	case OpCopy:
		fromPath := parsetree.ParsePath(op.From)
		val, comment, err := p.snapshot(fromPath)
		if err != nil {
			return false, err
		}
		if err := p.addOrSetWithComment(path, val, comment); err != nil {
			return false, err
		}
		p.markModified()
		return true, nil
	default:
		return false, &crmerrors.JSONPatchValidationException{Op: string(op.Op), Message: "unsupported op"}
	}
}

func (p *Parser) snapshot(path parsetree.Path) (any, string, error) {
	id, ok := p.Tree.Find(path)
	if !ok {
		return nil, "", &crmerrors.JSONPatchValidationException{Op: "move/copy", Message: "from path does not exist: " + path.String()}
	}
	val, err := p.valueAtID(id)
	if err != nil {
		return nil, "", err
	}
	return val, p.Tree.Node(id).Comment, nil
}

func (p *Parser) valueAt(path parsetree.Path) (any, error) {
	id, ok := p.Tree.Find(path)
	if !ok {
		return nil, &crmerrors.JSONPatchValidationException{Op: "test", Message: "path does not exist: " + path.String()}
	}
	return p.valueAtID(id)
}

func deepEqual(a, b any) bool {
	return fmt.Sprintf("%#v", a) == fmt.Sprintf("%#v", b)
}
