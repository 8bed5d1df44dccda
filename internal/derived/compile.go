// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package derived

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/innkeeper/internal/spec"
)

// JoinDependency is a join an expression needs to resolve.
type JoinDependency struct {
	JoinID     string `json:"joinId"`
	LeftModel  string `json:"leftModel"`
	RightModel string `json:"rightModel"`
}

// Definition is a stored derived field plus its compiler output.
type Definition struct {
	ID         string `json:"id" validate:"required,identifier"`
	Name       string `json:"name,omitempty"`
	Kind       Kind   `json:"kind" validate:"required,oneof=row aggregate"`
	Expression *Expr  `json:"expressionAst" validate:"required"`

	ReferencedModels    []string         `json:"referencedModels"`
	JoinDependencies    []JoinDependency `json:"joinDependencies"`
	ModelGraphSignature string           `json:"modelGraphSignature"`
	CompiledSQLHash     string           `json:"compiledSqlHash"`
	CanonicalSQL        string           `json:"canonicalSql"`
	CompiledAt          time.Time        `json:"compiledAt"`
	UpdatedAt           time.Time        `json:"updatedAt"`
}

// Info adapts d for spec.Validate.
func (d *Definition) Info() spec.DerivedInfo {
	return spec.DerivedInfo{ID: d.ID, Kind: string(d.Kind), Models: d.ReferencedModels}
}

// Result is the output of Compile.
type Result struct {
	ReferencedModels    []string
	JoinDependencies    []JoinDependency
	ModelGraphSignature string
	CompiledSQLHash     string
	CanonicalSQL        string
	Aggregate           bool
}

type walker struct {
	cat   spec.Catalog
	g     Graph
	joins map[string]spec.Join
}

type walkResult struct {
	models     map[string]bool
	aggregate  bool
	bareColumn bool
}

// Compile resolves e against g. cat may be nil to skip field checks.
func Compile(e *Expr, g Graph, cat spec.Catalog) (*Result, error) {
	w := &walker{cat: cat, g: g, joins: make(map[string]spec.Join)}
	res, err := w.walk(e, false)
	if err != nil {
		return nil, err
	}

	text, err := canonicalText(e)
	if err != nil {
		return nil, &CompileError{Message: err.Error()}
	}

	models := sortedKeys(res.models)
	joins := make([]spec.Join, 0, len(w.joins))
	for _, j := range w.joins {
		joins = append(joins, j)
	}
	sort.Slice(joins, func(i, k int) bool { return joins[i].ID < joins[k].ID })

	deps := make([]JoinDependency, len(joins))
	for i, j := range joins {
		deps[i] = JoinDependency{JoinID: j.ID, LeftModel: j.LeftModel, RightModel: j.RightModel}
	}

	sum := sha256.Sum256([]byte(text))
	return &Result{
		ReferencedModels:    models,
		JoinDependencies:    deps,
		ModelGraphSignature: signature(models, joins),
		CompiledSQLHash:     hex.EncodeToString(sum[:]),
		CanonicalSQL:        text,
		Aggregate:           res.aggregate,
	}, nil
}

// CompileDefinition compiles def against g and returns an updated copy.
func CompileDefinition(def *Definition, g Graph, cat spec.Catalog, now time.Time) (*Definition, error) {
	res, err := Compile(def.Expression, g, cat)
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) {
			ce.FieldID = def.ID
		}
		return nil, err
	}

	switch def.Kind {
	case KindRow:
		if res.Aggregate {
			return nil, &CompileError{FieldID: def.ID, Message: "row field must not use aggregate functions"}
		}
	case KindAggregate:
		if !res.Aggregate {
			return nil, &CompileError{FieldID: def.ID, Message: "aggregate field must use an aggregate function"}
		}
		w := &walker{g: g, joins: map[string]spec.Join{}}
		if r, _ := w.walk(def.Expression, false); r.bareColumn {
			return nil, &CompileError{FieldID: def.ID, Message: "aggregate field references a column outside an aggregate function"}
		}
	default:
		return nil, &CompileError{FieldID: def.ID, Message: fmt.Sprintf("unknown kind %q", def.Kind)}
	}

	out := *def
	out.ReferencedModels = res.ReferencedModels
	out.JoinDependencies = res.JoinDependencies
	out.ModelGraphSignature = res.ModelGraphSignature
	out.CompiledSQLHash = res.CompiledSQLHash
	out.CanonicalSQL = res.CanonicalSQL
	out.CompiledAt = now
	return &out, nil
}

// CheckFresh returns a *StaleError when def's recorded join shape differs
// from the shape those joins have in g.
func CheckFresh(def *Definition, g Graph) error {
	joins := make([]spec.Join, 0, len(def.JoinDependencies))
	for _, dep := range def.JoinDependencies {
		if j, ok := g.Join(dep.JoinID); ok {
			joins = append(joins, j)
		}
	}
	models := make([]string, 0, len(def.ReferencedModels))
	for _, m := range def.ReferencedModels {
		if g.HasModel(m) {
			models = append(models, m)
		}
	}

	got := signature(models, joins)
	if def.ModelGraphSignature == "" || got != def.ModelGraphSignature ||
		len(joins) != len(def.JoinDependencies) || len(models) != len(def.ReferencedModels) {
		return &StaleError{FieldID: def.ID, Want: def.ModelGraphSignature, Got: got}
	}
	return nil
}

func signature(models []string, joins []spec.Join) string {
	parts := make([]string, 0, len(models)+len(joins))
	for _, m := range models {
		parts = append(parts, "model:"+m)
	}
	for _, j := range joins {
		parts = append(parts, fmt.Sprintf("join:%s:%s.%s=%s.%s:%s",
			j.ID, j.LeftModel, j.LeftField, j.RightModel, j.RightField, j.Type()))
	}
	sort.Strings(parts)
	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:])
}

func (w *walker) walk(e *Expr, insideAggregate bool) (walkResult, error) {
	res := walkResult{models: map[string]bool{}}
	if e == nil {
		return res, &CompileError{Message: "missing expression node"}
	}

	switch e.Type {
	case NodeColumn:
		if !w.g.HasModel(e.ModelID) {
			return res, &CompileError{Message: fmt.Sprintf("column %s.%s references model %q outside the join graph", e.ModelID, e.FieldID, e.ModelID)}
		}
		if w.cat != nil && !w.cat.HasField(e.ModelID, e.FieldID) {
			return res, &CompileError{Message: fmt.Sprintf("unknown field %s.%s", e.ModelID, e.FieldID)}
		}
		res.models[e.ModelID] = true
		res.bareColumn = !insideAggregate
		return res, nil

	case NodeLiteral:
		if _, err := literalSQL(e.Value); err != nil {
			return res, &CompileError{Message: err.Error()}
		}
		return res, nil

	case NodeUnary:
		if _, ok := unaryOps[strings.ToLower(e.Op)]; !ok {
			return res, &CompileError{Message: fmt.Sprintf("unknown unary operator %q", e.Op)}
		}
		if e.Arg == nil {
			return res, &CompileError{Message: fmt.Sprintf("unary %s is missing its operand", e.Op)}
		}
		return w.walk(e.Arg, insideAggregate)

	case NodeBinary:
		if _, ok := binaryOps[strings.ToLower(e.Op)]; !ok {
			return res, &CompileError{Message: fmt.Sprintf("unknown binary operator %q", e.Op)}
		}
		if e.Left == nil || e.Right == nil {
			return res, &CompileError{Message: fmt.Sprintf("binary %s is missing an operand", e.Op)}
		}
		if e.Op == "/" && isZeroLiteral(e.Right) {
			return res, &CompileError{Message: "division by literal zero"}
		}
		return w.combine(insideAggregate, e.Left, e.Right)

	case NodeFunction:
		name := strings.ToLower(e.Name)
		fn, ok := functions[name]
		if !ok {
			return res, &CompileError{Message: fmt.Sprintf("unknown function %q", e.Name)}
		}
		if len(e.Args) < fn.minArgs || (fn.maxArgs >= 0 && len(e.Args) > fn.maxArgs) {
			return res, &CompileError{Message: fmt.Sprintf("function %s called with %d arguments", name, len(e.Args))}
		}
		for i, a := range e.Args {
			if a == nil {
				return res, &CompileError{Message: fmt.Sprintf("function %s argument %d is null", name, i+1)}
			}
		}
		if fn.aggregate && insideAggregate {
			return res, &CompileError{Message: fmt.Sprintf("nested aggregate %s", name)}
		}
		if name == "date_trunc" {
			unit, _ := e.Args[0].Value.(string)
			if e.Args[0].Type != NodeLiteral || !validTruncUnit(unit) {
				return res, &CompileError{Message: "date_trunc requires a literal unit"}
			}
		}
		out, err := w.combine(insideAggregate || fn.aggregate, e.Args...)
		out.aggregate = out.aggregate || fn.aggregate
		return out, err

	default:
		return res, &CompileError{Message: fmt.Sprintf("unknown node type %q", e.Type)}
	}
}

// combine walks children, unions their models, and records the joins that
// connect them when they span more than one model.
func (w *walker) combine(insideAggregate bool, children ...*Expr) (walkResult, error) {
	res := walkResult{models: map[string]bool{}}
	for _, c := range children {
		r, err := w.walk(c, insideAggregate)
		if err != nil {
			return res, err
		}
		for m := range r.models {
			res.models[m] = true
		}
		res.aggregate = res.aggregate || r.aggregate
		res.bareColumn = res.bareColumn || r.bareColumn
	}

	if len(res.models) > 1 {
		models := sortedKeys(res.models)
		for i := 0; i < len(models); i++ {
			for k := i + 1; k < len(models); k++ {
				path, ok := w.g.ShortestPath(models[i], models[k])
				if !ok {
					return res, &CompileError{Message: fmt.Sprintf("models %q and %q are not connected by any join", models[i], models[k])}
				}
				for _, j := range path {
					w.joins[j.ID] = j
				}
			}
		}
	}
	return res, nil
}

func validTruncUnit(u string) bool {
	switch u {
	case spec.BucketHour, spec.BucketDay, spec.BucketWeek, spec.BucketMonth, spec.BucketQuarter, spec.BucketYear:
		return true
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
