package predicate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/wellmeet/internal/accounts/domain"
	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// ErrInvalidFilter wraps every ParseFilter failure.
var ErrInvalidFilter = errors.New("invalid filter")

// Filter field names accepted by ParseFilter.
const (
	FieldRole      = "role"
	FieldUsername  = "username"
	FieldEmail     = "email"
	FieldName      = "name"
	FieldCreatedAt = "created_at"
)

// Declarations returns the AIP-160 identifiers a user filter may reference.
func Declarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent(FieldRole, filtering.TypeString),
		filtering.DeclareIdent(FieldUsername, filtering.TypeString),
		filtering.DeclareIdent(FieldEmail, filtering.TypeString),
		filtering.DeclareIdent(FieldName, filtering.TypeString),
		filtering.DeclareIdent(FieldCreatedAt, filtering.TypeTimestamp),
	)
}

// ParseFilter parses an AIP-160 expression into a FilterSet, for example
//
//	role = "Admin" AND username:"ali" AND created_at >= timestamp("2025-01-01T00:00:00Z")
//
// Only AND-conjunctions are supported, with these forms:
//
//	role = "<role>"
//	username:"<text>", email:"<text>", name:"<text>"
//	created_at >= timestamp(...), created_at <= timestamp(...)
//
// Each field may appear once. An empty expression yields the zero FilterSet.
func ParseFilter(filterStr string) (domain.FilterSet, error) {
	var fs domain.FilterSet
	if strings.TrimSpace(filterStr) == "" {
		return fs, nil
	}

	decls, err := Declarations()
	if err != nil {
		return fs, fmt.Errorf("create declarations: %w", err)
	}

	filter, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return fs, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	if filter.CheckedExpr == nil {
		return fs, nil
	}

	b := filterBuilder{seen: map[string]bool{}}
	if err := b.visit(filter.CheckedExpr.GetExpr()); err != nil {
		return domain.FilterSet{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return b.fs, nil
}

type filterBuilder struct {
	fs   domain.FilterSet
	seen map[string]bool
}

func (b *filterBuilder) visit(e *expr.Expr) error {
	if e == nil {
		return nil
	}

	call, ok := e.GetExprKind().(*expr.Expr_CallExpr)
	if !ok {
		return fmt.Errorf("unsupported expression type: %T", e.GetExprKind())
	}

	switch fn := call.CallExpr.GetFunction(); fn {
	case filtering.FunctionAnd, "_&&_":
		for _, arg := range call.CallExpr.GetArgs() {
			if err := b.visit(arg); err != nil {
				return err
			}
		}
		return nil
	case filtering.FunctionEquals, "_==_":
		return b.equals(call.CallExpr.GetArgs())
	case filtering.FunctionHas:
		return b.has(call.CallExpr.GetArgs())
	case filtering.FunctionGreaterEquals, "_>=_":
		return b.bound(call.CallExpr.GetArgs(), true)
	case filtering.FunctionLessEquals, "_<=_":
		return b.bound(call.CallExpr.GetArgs(), false)
	default:
		return fmt.Errorf("unsupported function: %s", fn)
	}
}

func (b *filterBuilder) once(key string) error {
	if b.seen[key] {
		return fmt.Errorf("%s given more than once", key)
	}
	b.seen[key] = true
	return nil
}

func (b *filterBuilder) equals(args []*expr.Expr) error {
	field, value, err := fieldAndString(args)
	if err != nil {
		return err
	}
	if field != FieldRole {
		return fmt.Errorf("= is only supported on %s", FieldRole)
	}
	if err := b.once(field); err != nil {
		return err
	}

	role, err := domain.ParseRole(value)
	if err != nil {
		return err
	}
	b.fs.Role = &role
	return nil
}

func (b *filterBuilder) has(args []*expr.Expr) error {
	field, value, err := fieldAndString(args)
	if err != nil {
		return err
	}
	if err := b.once(field); err != nil {
		return err
	}

	switch field {
	case FieldUsername:
		b.fs.Username = value
	case FieldEmail:
		b.fs.Email = value
	case FieldName:
		b.fs.Name = value
	default:
		return fmt.Errorf(": is not supported on %s", field)
	}
	return nil
}

func (b *filterBuilder) bound(args []*expr.Expr, lower bool) error {
	if len(args) != 2 {
		return fmt.Errorf("comparison requires 2 arguments")
	}
	field, err := identName(args[0])
	if err != nil {
		return err
	}
	if field != FieldCreatedAt {
		return fmt.Errorf("range comparisons are only supported on %s", FieldCreatedAt)
	}
	t, err := timestampValue(args[1])
	if err != nil {
		return err
	}

	if lower {
		if err := b.once(field + ">="); err != nil {
			return err
		}
		b.fs.CreatedFrom = &t
	} else {
		if err := b.once(field + "<="); err != nil {
			return err
		}
		b.fs.CreatedTo = &t
	}
	return nil
}

func fieldAndString(args []*expr.Expr) (string, string, error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("comparison requires 2 arguments")
	}
	field, err := identName(args[0])
	if err != nil {
		return "", "", err
	}
	c, ok := args[1].GetExprKind().(*expr.Expr_ConstExpr)
	if !ok {
		return "", "", fmt.Errorf("%s must be compared with a string literal", field)
	}
	s, ok := c.ConstExpr.GetConstantKind().(*expr.Constant_StringValue)
	if !ok {
		return "", "", fmt.Errorf("%s must be compared with a string literal", field)
	}
	return field, s.StringValue, nil
}

func identName(e *expr.Expr) (string, error) {
	ident, ok := e.GetExprKind().(*expr.Expr_IdentExpr)
	if !ok {
		return "", fmt.Errorf("expected identifier, got %T", e.GetExprKind())
	}
	return ident.IdentExpr.GetName(), nil
}

func timestampValue(e *expr.Expr) (time.Time, error) {
	call, ok := e.GetExprKind().(*expr.Expr_CallExpr)
	if !ok || call.CallExpr.GetFunction() != filtering.FunctionTimestamp || len(call.CallExpr.GetArgs()) != 1 {
		return time.Time{}, fmt.Errorf("expected timestamp(\"...\")")
	}
	c, ok := call.CallExpr.GetArgs()[0].GetExprKind().(*expr.Expr_ConstExpr)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp argument must be a constant string")
	}
	s, ok := c.ConstExpr.GetConstantKind().(*expr.Constant_StringValue)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp argument must be a string")
	}
	t, err := time.Parse(time.RFC3339Nano, s.StringValue)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s.StringValue)
	}
	return t.UTC(), nil
}
