// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

// Package derived compiles named expressions over one or more models into
// dependency-annotated definitions the planner can inline.
//
// Compilation records which models an expression touches, which joins are
// needed to connect them, a signature of that join shape, and a hash of the
// canonical expression text. A definition whose signature no longer matches
// the query's join graph is stale and is recompiled before use.
package derived

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeType tags an expression node.
type NodeType string

// Expression node types.
const (
	NodeColumn   NodeType = "column"
	NodeLiteral  NodeType = "literal"
	NodeBinary   NodeType = "binary"
	NodeUnary    NodeType = "unary"
	NodeFunction NodeType = "function"
)

// Kind distinguishes per-row scalars from group reductions.
type Kind string

// Derived field kinds.
const (
	KindRow       Kind = "row"
	KindAggregate Kind = "aggregate"
)

// Expr is one node of an expression tree. Only the fields of its Type are set.
type Expr struct {
	Type NodeType `json:"type"`

	// column
	ModelID string `json:"modelId,omitempty"`
	FieldID string `json:"fieldId,omitempty"`

	// literal
	Value interface{} `json:"value"`

	// binary, unary
	Op    string `json:"op,omitempty"`
	Left  *Expr  `json:"left,omitempty"`
	Right *Expr  `json:"right,omitempty"`
	Arg   *Expr  `json:"arg,omitempty"`

	// function
	Name string  `json:"name,omitempty"`
	Args []*Expr `json:"args,omitempty"`
}

// Col builds a column node.
func Col(model, field string) *Expr {
	return &Expr{Type: NodeColumn, ModelID: model, FieldID: field}
}

// Lit builds a literal node.
func Lit(v interface{}) *Expr {
	return &Expr{Type: NodeLiteral, Value: v}
}

// Bin builds a binary node.
func Bin(op string, left, right *Expr) *Expr {
	return &Expr{Type: NodeBinary, Op: op, Left: left, Right: right}
}

// Fn builds a function node.
func Fn(name string, args ...*Expr) *Expr {
	return &Expr{Type: NodeFunction, Name: name, Args: args}
}

var binaryOps = map[string]string{
	"+": "+", "-": "-", "*": "*", "/": "/", "%": "%",
	"=": "=", "!=": "<>", "<": "<", "<=": "<=", ">": ">", ">=": ">=",
	"and": "AND", "or": "OR",
}

var commutativeOps = map[string]bool{
	"+": true, "*": true, "=": true, "!=": true, "and": true, "or": true,
}

var unaryOps = map[string]string{
	"-": "-", "not": "NOT ",
}

type function struct {
	minArgs   int
	maxArgs   int // -1 means variadic
	aggregate bool
	sql       string
}

var functions = map[string]function{
	"abs":            {1, 1, false, "ABS"},
	"round":          {1, 2, false, "ROUND"},
	"ceil":           {1, 1, false, "CEIL"},
	"floor":          {1, 1, false, "FLOOR"},
	"coalesce":       {1, -1, false, "COALESCE"},
	"nullif":         {2, 2, false, "NULLIF"},
	"greatest":       {2, -1, false, "GREATEST"},
	"least":          {2, -1, false, "LEAST"},
	"lower":          {1, 1, false, "LOWER"},
	"upper":          {1, 1, false, "UPPER"},
	"date_trunc":     {2, 2, false, "DATE_TRUNC"},
	"sum":            {1, 1, true, "SUM"},
	"avg":            {1, 1, true, "AVG"},
	"min":            {1, 1, true, "MIN"},
	"max":            {1, 1, true, "MAX"},
	"count":          {1, 1, true, "COUNT"},
	"count_distinct": {1, 1, true, "COUNT"},
}

// literalSQL renders a literal value. Strings are single-quoted with quotes
// doubled.
func literalSQL(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if t {
			return "TRUE", nil
		}
		return "FALSE", nil
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'", nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	default:
		return "", fmt.Errorf("unsupported literal %T", v)
	}
}

func isZeroLiteral(e *Expr) bool {
	if e == nil || e.Type != NodeLiteral {
		return false
	}
	switch t := e.Value.(type) {
	case float64:
		return t == 0
	case float32:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	}
	return false
}

// ColumnResolver renders a column reference as SQL.
type ColumnResolver func(modelID, fieldID string) (string, error)

// Render produces executable SQL for e.
func Render(e *Expr, resolve ColumnResolver) (string, error) {
	return render(e, resolve, false)
}

// canonicalText renders e with model.field column names and commutative
// operands sorted, so formatting differences do not change the result.
func canonicalText(e *Expr) (string, error) {
	return render(e, func(m, f string) (string, error) { return m + "." + f, nil }, true)
}

func render(e *Expr, resolve ColumnResolver, canonical bool) (string, error) {
	if e == nil {
		return "", fmt.Errorf("empty expression")
	}
	switch e.Type {
	case NodeColumn:
		return resolve(e.ModelID, e.FieldID)

	case NodeLiteral:
		return literalSQL(e.Value)

	case NodeBinary:
		op, ok := binaryOps[strings.ToLower(e.Op)]
		if !ok {
			return "", fmt.Errorf("unknown binary operator %q", e.Op)
		}
		l, err := render(e.Left, resolve, canonical)
		if err != nil {
			return "", err
		}
		r, err := render(e.Right, resolve, canonical)
		if err != nil {
			return "", err
		}
		if canonical && commutativeOps[strings.ToLower(e.Op)] && r < l {
			l, r = r, l
		}
		if op == "/" && !canonical {
			// A zero column divisor yields NULL for that row.
			return "(" + l + " / NULLIF(" + r + ", 0))", nil
		}
		return "(" + l + " " + op + " " + r + ")", nil

	case NodeUnary:
		op, ok := unaryOps[strings.ToLower(e.Op)]
		if !ok {
			return "", fmt.Errorf("unknown unary operator %q", e.Op)
		}
		a, err := render(e.Arg, resolve, canonical)
		if err != nil {
			return "", err
		}
		return "(" + op + a + ")", nil

	case NodeFunction:
		name := strings.ToLower(e.Name)
		fn, ok := functions[name]
		if !ok {
			return "", fmt.Errorf("unknown function %q", e.Name)
		}
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			s, err := render(a, resolve, canonical)
			if err != nil {
				return "", err
			}
			args[i] = s
		}
		if name == "count_distinct" {
			return "COUNT(DISTINCT " + args[0] + ")", nil
		}
		return fn.sql + "(" + strings.Join(args, ", ") + ")", nil

	default:
		return "", fmt.Errorf("unknown node type %q", e.Type)
	}
}
