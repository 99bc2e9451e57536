// Package querybuilder builds parameterised SQL fragments.
//
// Field names passed to these functions are written into the SQL text
// verbatim, so they must come from a caller-maintained allow-list. Values are
// always bound through ? placeholders.
package querybuilder

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRange is returned when a range value does not split into exactly
// a lower and an upper bound.
var ErrInvalidRange = errors.New("querybuilder: invalid range value")

// rangeSeparator splits range field names and range values.
const rangeSeparator = "_"

// Field is one column/value pair. Slices of Field keep insertion order, which
// is the predicate order.
type Field struct {
	Name  string
	Value any
}

// Fragment is a SQL snippet with its bind values aligned to the placeholders.
type Fragment struct {
	SQL  string
	Args []any
}

// BuildPredicate renders "<prefix> k1=? <op> k2=? ...".
//
// It returns nil when fields is empty or prefix is blank.
func BuildPredicate(prefix, joinOp string, fields []Field) *Fragment {
	if len(fields) == 0 || strings.TrimSpace(prefix) == "" {
		return nil
	}

	parts := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Name+"=?")
		args = append(args, f.Value)
	}

	sep := " " + strings.TrimSpace(joinOp) + " "
	return &Fragment{
		SQL:  strings.TrimSpace(prefix) + " " + strings.Join(parts, sep),
		Args: args,
	}
}

// BuildLikeClause renders one case-insensitive substring match per pair,
// joined by AND. Wildcards in values match literally. It returns an empty
// fragment unless both slices are non-empty and of equal length.
func BuildLikeClause(likeFields, likeValues []string) Fragment {
	if len(likeFields) == 0 || len(likeValues) == 0 || len(likeFields) != len(likeValues) {
		return Fragment{}
	}

	parts := make([]string, 0, len(likeFields))
	args := make([]any, 0, len(likeValues))
	for i, field := range likeFields {
		// SQLite LIKE is case-insensitive for ASCII.
		parts = append(parts, field+` LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(likeValues[i])+"%")
	}

	return Fragment{SQL: strings.Join(parts, " AND "), Args: args}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// BuildRangeClause renders inclusive range bounds.
//
// Each range field is a compound "lowerColumn_upperColumn" key split at its
// middle separator, so "created_at_created_at" bounds created_at on both
// sides. Each range value is "lower_upper". An empty fragment is returned for
// empty or mismatched input; ErrInvalidRange when a value does not split into
// exactly two parts.
func BuildRangeClause(rangeFields, rangeValues []string) (Fragment, error) {
	if len(rangeFields) == 0 || len(rangeValues) == 0 || len(rangeFields) != len(rangeValues) {
		return Fragment{}, nil
	}

	parts := make([]string, 0, len(rangeFields))
	args := make([]any, 0, 2*len(rangeValues))
	for i, field := range rangeFields {
		bounds := strings.Split(rangeValues[i], rangeSeparator)
		if len(bounds) != 2 {
			return Fragment{}, fmt.Errorf("%w: %q", ErrInvalidRange, rangeValues[i])
		}

		lowerCol, upperCol := splitRangeField(field)
		parts = append(parts, lowerCol+" >= ? AND "+upperCol+" <= ?")
		args = append(args, strings.TrimSpace(bounds[0]), strings.TrimSpace(bounds[1]))
	}

	return Fragment{SQL: strings.Join(parts, " AND "), Args: args}, nil
}

// splitRangeField splits "a_b_a_b" into ("a_b", "a_b"). Names with an odd
// number of segments cannot be halved and bound the same column twice.
func splitRangeField(field string) (lower, upper string) {
	segments := strings.Split(field, rangeSeparator)
	if len(segments)%2 != 0 {
		return field, field
	}
	half := len(segments) / 2
	return strings.Join(segments[:half], rangeSeparator), strings.Join(segments[half:], rangeSeparator)
}

// BuildOrderByClause renders " ORDER BY [alias.]column ASC|DESC".
//
// It returns "" when sortBy is blank. Direction defaults to ascending.
func BuildOrderByClause(sortBy, direction, alias string) string {
	sortBy = strings.TrimSpace(sortBy)
	if sortBy == "" {
		return ""
	}

	dir := "ASC"
	if strings.EqualFold(strings.TrimSpace(direction), "desc") {
		dir = "DESC"
	}

	column := sortBy
	if alias = strings.TrimSpace(alias); alias != "" {
		column = alias + "." + sortBy
	}
	return " ORDER BY " + column + " " + dir
}

// SplitList splits csv on delim and trims every token. Blank tokens are
// dropped, so an empty input yields an empty, non-nil slice.
func SplitList(csv, delim string) []string {
	out := []string{}
	if strings.TrimSpace(csv) == "" {
		return out
	}
	for _, tok := range strings.Split(csv, delim) {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// BuildInClause renders "column IN (?, ?, ...)". It returns an empty
// fragment when values is empty.
func BuildInClause(column string, values []any) Fragment {
	if len(values) == 0 {
		return Fragment{}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	return Fragment{
		SQL:  column + " IN (" + placeholders + ")",
		Args: append([]any(nil), values...),
	}
}

// Join concatenates non-empty fragments with AND.
func Join(fragments ...Fragment) Fragment {
	var parts []string
	var args []any
	for _, f := range fragments {
		if f.SQL == "" {
			continue
		}
		parts = append(parts, f.SQL)
		args = append(args, f.Args...)
	}
	return Fragment{SQL: strings.Join(parts, " AND "), Args: args}
}
