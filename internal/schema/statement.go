// Package schema builds a structural inventory of SurrealQL schema files:
// content-hashed file snapshots, a best-effort catalog of DEFINE'd entities,
// and diffs between snapshots. It deliberately stops far short of a real
// parser; splitting is quote-aware and extraction is token-based.
package schema

import "strings"

type quoteKind int

const (
	quoteNone quoteKind = iota
	quoteSingle
	quoteDouble
	quoteBacktick
)

// StripLineComments drops lines whose trimmed start is a -- or // comment.
// Inline comments are left alone; the splitter's quote tracking carries them
// safely.
func StripLineComments(sql string) string {
	lines := strings.Split(sql, "\n")
	kept := lines[:0]
	for _, line := range lines {
		t := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(t, "--") || strings.HasPrefix(t, "//") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// SplitStatements splits sql on semicolons outside single-, double- and
// backtick-quoted regions. A backslash escape suppresses the quote toggle for
// the following character; escape state resets after each consumed pair.
// A trailing non-empty buffer is emitted as a final statement.
func SplitStatements(sql string) []string {
	var out []string
	var buf strings.Builder
	quote := quoteNone
	escaped := false

	flush := func() {
		if stmt := strings.TrimSpace(buf.String()); stmt != "" {
			out = append(out, stmt)
		}
		buf.Reset()
	}

	for _, ch := range sql {
		switch ch {
		case '\'':
			if !escaped {
				if quote == quoteNone {
					quote = quoteSingle
				} else if quote == quoteSingle {
					quote = quoteNone
				}
			}
		case '"':
			if !escaped {
				if quote == quoteNone {
					quote = quoteDouble
				} else if quote == quoteDouble {
					quote = quoteNone
				}
			}
		case '`':
			if !escaped {
				if quote == quoteNone {
					quote = quoteBacktick
				} else if quote == quoteBacktick {
					quote = quoteNone
				}
			}
		case ';':
			if quote == quoteNone {
				flush()
				escaped = false
				continue
			}
		}

		escaped = ch == '\\' && !escaped
		buf.WriteRune(ch)
	}

	flush()
	return out
}

// Tokenize splits a statement on whitespace. It performs no further
// quote-awareness; that is an accepted limitation of the inventory.
func Tokenize(stmt string) []string {
	return strings.Fields(stmt)
}
