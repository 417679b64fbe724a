package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Predicate is a single equality filter.
type Predicate struct {
	Column string
	Value  interface{}
}

// Statement is a parsed SELECT.
type Statement struct {
	Table   string
	Columns []string // nil selects every column
	Where   *Predicate
	Limit   int64 // -1 when absent
}

// SELECT * FROM "cpu-1700000000000000"
// SELECT name, age FROM people-1 WHERE name = 'Tom' LIMIT 10
var selectRe = regexp.MustCompile(`(?is)^\s*SELECT\s+(.+?)\s+FROM\s+("[^"]+"|[\w.\-]+)` +
	`(?:\s+WHERE\s+("[^"]+"|\w+)\s*=\s*('[^']*'|"[^"]*"|[^\s;]+))?` +
	`(?:\s+LIMIT\s+(\d+))?\s*;?\s*$`)

// Parse parses the supported SELECT subset.
func Parse(sql string) (*Statement, error) {
	matches := selectRe.FindStringSubmatch(sql)
	if matches == nil {
		return nil, fmt.Errorf("invalid SELECT syntax: %q", strings.TrimSpace(sql))
	}

	stmt := &Statement{
		Table: unquoteIdent(matches[2]),
		Limit: -1,
	}

	cols := strings.TrimSpace(matches[1])
	if cols != "*" {
		for _, c := range strings.Split(cols, ",") {
			c = unquoteIdent(strings.TrimSpace(c))
			if c == "" {
				return nil, fmt.Errorf("empty column name in %q", cols)
			}
			stmt.Columns = append(stmt.Columns, c)
		}
	}

	if matches[3] != "" {
		stmt.Where = &Predicate{
			Column: unquoteIdent(matches[3]),
			Value:  parseValue(matches[4]),
		}
	}

	if matches[5] != "" {
		n, err := strconv.ParseInt(matches[5], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid LIMIT %q: %w", matches[5], err)
		}
		stmt.Limit = n
	}
	return stmt, nil
}

func unquoteIdent(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// parseValue reads a literal: quoted string, bool, number, or bare string.
func parseValue(str string) interface{} {
	str = strings.TrimSpace(str)

	if len(str) >= 2 && ((strings.HasPrefix(str, "'") && strings.HasSuffix(str, "'")) ||
		(strings.HasPrefix(str, "\"") && strings.HasSuffix(str, "\""))) {
		return str[1 : len(str)-1]
	}

	if strings.EqualFold(str, "true") {
		return true
	}
	if strings.EqualFold(str, "false") {
		return false
	}

	if val, err := strconv.ParseFloat(str, 64); err == nil {
		return val
	}
	return str
}
