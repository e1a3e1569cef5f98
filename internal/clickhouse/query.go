package clickhouse

// query.go is the only place SQL text is assembled. Every identifier has
// been validated by the request conversion and is validated again here, then
// backtick-quoted. The join condition is the one free-text fragment and is
// inserted as given.

import (
	"strconv"
	"strings"

	"github.com/JonMunkholm/chflat/internal/core"
	"github.com/JonMunkholm/chflat/internal/identifier"
	"github.com/JonMunkholm/chflat/internal/schema"
)

func quote(name string) string {
	return "`" + name + "`"
}

func quoteColumn(ref string) string {
	q, c := identifier.Split(ref)
	if q == "" {
		return quote(c)
	}
	return quote(q) + "." + quote(c)
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteColumn(n)
	}
	return strings.Join(quoted, ", ")
}

// buildSelect renders a SELECT for one table or a two-table join.
func buildSelect(spec core.SelectSpec) (string, error) {
	const op = "select"

	switch n := len(spec.Tables); {
	case n == 0:
		return "", core.Invalid(op, "table required")
	case n > 2:
		return "", core.E(core.KindUnsupportedTopology, op, core.ErrUnsupportedTopology)
	}
	if len(spec.Columns) == 0 {
		return "", core.E(core.KindNoColumnsSelected, op, core.ErrNoColumnsSelected)
	}
	for _, t := range spec.Tables {
		if err := identifier.Table(t); err != nil {
			return "", core.E(core.KindInvalidInput, op, err)
		}
	}
	check := identifier.Column
	if spec.Joined() {
		check = identifier.QualifiedColumn
	}
	for _, c := range spec.Columns {
		if err := check(c); err != nil {
			return "", core.E(core.KindInvalidInput, op, err)
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(quoteAll(spec.Columns))
	b.WriteString(" FROM ")
	b.WriteString(quote(spec.Tables[0]))

	if spec.Joined() {
		if strings.TrimSpace(spec.JoinCondition) == "" {
			return "", core.Invalid(op, "join condition required when two tables are selected")
		}
		b.WriteString(" AS ")
		b.WriteString(spec.Tables[0])
		b.WriteString(" JOIN ")
		b.WriteString(quote(spec.Tables[1]))
		b.WriteString(" AS ")
		b.WriteString(spec.Tables[1])
		b.WriteString(" ON ")
		b.WriteString(spec.JoinCondition)
	} else if spec.JoinCondition != "" {
		return "", core.Invalid(op, "join condition requires exactly two tables")
	}

	if spec.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(spec.Limit))
	}
	return b.String(), nil
}

// buildCreateTable renders an idempotent MergeTree DDL statement.
func buildCreateTable(table string, sc schema.Schema) (string, error) {
	const op = "create table"
	if err := identifier.Table(table); err != nil {
		return "", core.E(core.KindInvalidInput, op, err)
	}
	if len(sc) == 0 {
		return "", core.E(core.KindNoColumnsSelected, op, core.ErrNoColumnsSelected)
	}

	defs := make([]string, len(sc))
	for i, c := range sc {
		if err := identifier.Column(c.Name); err != nil {
			return "", core.E(core.KindInvalidInput, op, err)
		}
		defs[i] = quote(c.Name) + " " + c.ClickHouseType()
	}
	return "CREATE TABLE IF NOT EXISTS " + quote(table) + " (" + strings.Join(defs, ", ") +
		") ENGINE = MergeTree() ORDER BY tuple()", nil
}

// buildInsert renders a prepared INSERT with one placeholder per column.
func buildInsert(table string, sc schema.Schema) (string, error) {
	const op = "insert"
	if err := identifier.Table(table); err != nil {
		return "", core.E(core.KindInvalidInput, op, err)
	}
	if len(sc) == 0 {
		return "", core.E(core.KindNoColumnsSelected, op, core.ErrNoColumnsSelected)
	}
	for _, c := range sc {
		if err := identifier.Column(c.Name); err != nil {
			return "", core.E(core.KindInvalidInput, op, err)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(sc)), ", ")
	return "INSERT INTO " + quote(table) + " (" + quoteAll(sc.Names()) + ") VALUES (" + placeholders + ")", nil
}

func buildDescribe(table string) (string, error) {
	if err := identifier.Table(table); err != nil {
		return "", core.E(core.KindInvalidInput, "describe", err)
	}
	return "DESCRIBE TABLE " + quote(table), nil
}
