package schema

import (
	"fmt"
	"strings"
	"unicode"

	"promosms/internal/errors"
)

// sqlKeywords are tokens the identifier check ignores. Anything outside
// this list, the catalog, and statement-local aliases is rejected.
var sqlKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "or": true,
	"not": true, "in": true, "is": true, "null": true, "like": true,
	"between": true, "exists": true, "as": true, "on": true, "join": true,
	"inner": true, "left": true, "right": true, "outer": true, "cross": true,
	"group": true, "by": true, "having": true, "order": true, "asc": true,
	"desc": true, "limit": true, "offset": true, "distinct": true,
	"case": true, "when": true, "then": true, "else": true, "end": true,
	"union": true, "all": true, "true": true, "false": true,
	"interval": true, "day": true, "days": true, "month": true, "year": true,
}

var sqlFunctions = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
	"coalesce": true, "ifnull": true, "nullif": true, "length": true,
	"lower": true, "upper": true, "substr": true, "trim": true,
	"round": true, "abs": true, "cast": true,
	"date": true, "datetime": true, "strftime": true, "julianday": true,
	"now": true, "current_date": true, "current_timestamp": true,
}

var mutationKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "truncate", "create",
	"replace", "attach", "detach", "pragma", "vacuum", "reindex",
	"grant", "revoke",
}

// ValidateStatement checks a candidate statement against the catalog:
// a single SELECT, no mutation keywords, and every referenced table and
// column inside the allow-list. It never rewrites the statement.
func (c *Catalog) ValidateStatement(stmt string) error {
	s := strings.TrimSpace(stmt)
	if s == "" {
		return errors.New(errors.ErrCodeTranslationRejected, "empty statement")
	}

	s = strings.TrimSuffix(s, ";")
	if strings.Contains(s, ";") {
		return errors.New(errors.ErrCodeTranslationRejected, "multiple statements are not allowed")
	}

	tokens := tokenize(stripLiterals(s))
	if len(tokens) == 0 || !strings.EqualFold(tokens[0].text, "select") {
		return errors.New(errors.ErrCodeTranslationRejected, "only SELECT statements are allowed")
	}

	for _, tok := range tokens {
		if tok.kind != tokenIdent {
			continue
		}
		lower := strings.ToLower(tok.text)
		for _, kw := range mutationKeywords {
			if lower == kw {
				return errors.New(errors.ErrCodeTranslationRejected,
					fmt.Sprintf("disallowed keyword: %s", lower))
			}
		}
	}

	aliases, err := c.checkTableReferences(tokens)
	if err != nil {
		return err
	}

	return c.checkIdentifiers(tokens, aliases)
}

// checkTableReferences walks FROM/JOIN clauses, verifying each referenced
// table and collecting statement-local aliases.
func (c *Catalog) checkTableReferences(tokens []token) (map[string]bool, error) {
	aliases := make(map[string]bool)

	for i := 0; i < len(tokens); i++ {
		if tokens[i].kind != tokenIdent {
			continue
		}
		word := strings.ToLower(tokens[i].text)
		if word != "from" && word != "join" {
			continue
		}

		for {
			i++
			// "public." schema qualifiers come from the upstream model's
			// PostgreSQL habits; tolerate and skip them.
			if i < len(tokens) && strings.EqualFold(tokens[i].text, "public") &&
				i+1 < len(tokens) && tokens[i+1].kind == tokenPunct && tokens[i+1].text == "." {
				i += 2
			}
			if i >= len(tokens) || tokens[i].kind != tokenIdent {
				break
			}

			table := strings.ToLower(tokens[i].text)
			if !c.HasTable(table) {
				return nil, errors.New(errors.ErrCodeTranslationRejected,
					fmt.Sprintf("table not in allow-list: %s", table))
			}

			// Optional "AS alias" or bare alias.
			if i+1 < len(tokens) && strings.EqualFold(tokens[i+1].text, "as") {
				i++
			}
			if i+1 < len(tokens) && tokens[i+1].kind == tokenIdent &&
				!sqlKeywords[strings.ToLower(tokens[i+1].text)] {
				i++
				aliases[strings.ToLower(tokens[i].text)] = true
			}

			// Comma-separated FROM list continues with another table.
			if i+1 < len(tokens) && tokens[i+1].kind == tokenPunct && tokens[i+1].text == "," {
				i++
				continue
			}
			break
		}
	}

	return aliases, nil
}

// checkIdentifiers rejects any identifier that is not a keyword, function,
// catalog table, catalog column, or statement-local alias.
func (c *Catalog) checkIdentifiers(tokens []token, aliases map[string]bool) error {
	for _, tok := range tokens {
		if tok.kind != tokenIdent {
			continue
		}
		word := strings.ToLower(tok.text)

		switch {
		case sqlKeywords[word], sqlFunctions[word]:
		case word == "public":
		case c.HasTable(word):
		case c.hasColumn(word):
		case aliases[word]:
		default:
			return errors.New(errors.ErrCodeTranslationRejected,
				fmt.Sprintf("identifier not in schema: %s", word))
		}
	}
	return nil
}

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenNumber
	tokenPunct
)

type token struct {
	kind tokenKind
	text string
}

// stripLiterals blanks out single-quoted string literals (with ''
// escapes) so their contents are never mistaken for identifiers.
func stripLiterals(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			if ch == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					i++
					continue
				}
				inString = false
			}
			continue
		}
		if ch == '\'' {
			inString = true
			b.WriteString("''")
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func tokenize(s string) []token {
	var tokens []token
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i+1 < len(runes) && (unicode.IsLetter(runes[i+1]) || unicode.IsDigit(runes[i+1]) || runes[i+1] == '_') {
				i++
			}
			tokens = append(tokens, token{tokenIdent, string(runes[start : i+1])})
		case unicode.IsDigit(r):
			start := i
			for i+1 < len(runes) && (unicode.IsDigit(runes[i+1]) || runes[i+1] == '.') {
				i++
			}
			tokens = append(tokens, token{tokenNumber, string(runes[start : i+1])})
		default:
			tokens = append(tokens, token{tokenPunct, string(r)})
		}
	}
	return tokens
}
