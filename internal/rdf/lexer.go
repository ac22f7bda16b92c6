package rdf

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType classifies lexer tokens shared by the Turtle reader and the rule
// language.
type TokenType int

const (
	TokEOF      TokenType = iota
	TokIRI                // <http://...>
	TokPName              // prefix:local
	TokBlank              // _:label
	TokVar                // ?name or $name
	TokString             // "lexical" (Text holds the unescaped value)
	TokLangTag            // @en
	TokDirective          // @prefix, @base
	TokDatatype           // ^^
	TokNumber             // 42, -1.5, 3e2
	TokName               // bare word: keywords, a, true, false
	TokPunct              // . ; , { } ( ) [ ]
	TokOp                 // = != < <= > >= && || ! *
)

// Token is a lexical unit with its source line.
type Token struct {
	Type TokenType
	Text string
	Line int
}

func (t Token) String() string {
	if t.Type == TokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q (line %d)", t.Text, t.Line)
}

// Tokenize splits text into tokens. Comments (# to end of line) are dropped.
func Tokenize(text string) ([]Token, error) {
	lx := &lexer{src: text, line: 1}
	var toks []Token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == TokEOF {
			return toks, nil
		}
	}
}

type lexer struct {
	src  string
	pos  int
	line int
	prev TokenType
}

func (lx *lexer) next() (Token, error) {
	lx.skipSpace()
	if lx.pos >= len(lx.src) {
		return Token{Type: TokEOF, Line: lx.line}, nil
	}
	tok, err := lx.scan()
	if err != nil {
		return Token{}, err
	}
	lx.prev = tok.Type
	return tok, nil
}

func (lx *lexer) skipSpace() {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\n':
			lx.line++
			lx.pos++
		case c == ' ' || c == '\t' || c == '\r':
			lx.pos++
		case c == '#':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.pos++
			}
		default:
			return
		}
	}
}

func (lx *lexer) scan() (Token, error) {
	c := lx.src[lx.pos]
	rest := lx.src[lx.pos:]
	line := lx.line

	switch {
	case c == '<':
		if end := iriEnd(rest); end > 0 {
			lx.pos += end + 1
			return Token{Type: TokIRI, Text: rest[1:end], Line: line}, nil
		}
		if strings.HasPrefix(rest, "<=") {
			lx.pos += 2
			return Token{Type: TokOp, Text: "<=", Line: line}, nil
		}
		lx.pos++
		return Token{Type: TokOp, Text: "<", Line: line}, nil
	case c == '>':
		if strings.HasPrefix(rest, ">=") {
			lx.pos += 2
			return Token{Type: TokOp, Text: ">=", Line: line}, nil
		}
		lx.pos++
		return Token{Type: TokOp, Text: ">", Line: line}, nil
	case c == '!':
		if strings.HasPrefix(rest, "!=") {
			lx.pos += 2
			return Token{Type: TokOp, Text: "!=", Line: line}, nil
		}
		lx.pos++
		return Token{Type: TokOp, Text: "!", Line: line}, nil
	case c == '=' || c == '*':
		lx.pos++
		return Token{Type: TokOp, Text: string(c), Line: line}, nil
	case strings.HasPrefix(rest, "&&"), strings.HasPrefix(rest, "||"):
		lx.pos += 2
		return Token{Type: TokOp, Text: rest[:2], Line: line}, nil
	case strings.HasPrefix(rest, "^^"):
		lx.pos += 2
		return Token{Type: TokDatatype, Text: "^^", Line: line}, nil
	case c == '"' || c == '\'':
		return lx.scanString(c)
	case c == '@':
		word := scanWhile(rest[1:], func(r rune) bool {
			return r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
		})
		if word == "" {
			return Token{}, fmt.Errorf("line %d: stray '@'", line)
		}
		lx.pos += 1 + len(word)
		if lx.prev == TokString {
			return Token{Type: TokLangTag, Text: word, Line: line}, nil
		}
		return Token{Type: TokDirective, Text: word, Line: line}, nil
	case c == '?' || c == '$':
		name := scanWhile(rest[1:], isNameRune)
		if name == "" {
			return Token{}, fmt.Errorf("line %d: empty variable name", line)
		}
		lx.pos += 1 + len(name)
		return Token{Type: TokVar, Text: name, Line: line}, nil
	case strings.HasPrefix(rest, "_:"):
		label := scanWhile(rest[2:], isNameRune)
		if label == "" {
			return Token{}, fmt.Errorf("line %d: empty blank node label", line)
		}
		lx.pos += 2 + len(label)
		return Token{Type: TokBlank, Text: label, Line: line}, nil
	case isNumberStart(rest):
		num := scanNumber(rest)
		lx.pos += len(num)
		return Token{Type: TokNumber, Text: num, Line: line}, nil
	case strings.ContainsRune(".;,{}()[]", rune(c)):
		lx.pos++
		return Token{Type: TokPunct, Text: string(c), Line: line}, nil
	}

	r, _ := utf8.DecodeRuneInString(rest)
	if r == ':' || unicode.IsLetter(r) {
		word := scanPName(rest)
		lx.pos += len(word)
		if strings.Contains(word, ":") {
			return Token{Type: TokPName, Text: word, Line: line}, nil
		}
		return Token{Type: TokName, Text: word, Line: line}, nil
	}
	return Token{}, fmt.Errorf("line %d: unexpected character %q", line, r)
}

func (lx *lexer) scanString(quote byte) (Token, error) {
	line := lx.line
	var b strings.Builder
	i := lx.pos + 1
	for i < len(lx.src) {
		c := lx.src[i]
		switch c {
		case quote:
			lx.pos = i + 1
			return Token{Type: TokString, Text: b.String(), Line: line}, nil
		case '\n':
			return Token{}, fmt.Errorf("line %d: unterminated string", line)
		case '\\':
			if i+1 >= len(lx.src) {
				return Token{}, fmt.Errorf("line %d: dangling escape", line)
			}
			switch e := lx.src[i+1]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"', '\'', '\\':
				b.WriteByte(e)
			default:
				return Token{}, fmt.Errorf("line %d: unknown escape \\%c", line, e)
			}
			i += 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return Token{}, fmt.Errorf("line %d: unterminated string", line)
}

// iriEnd returns the index of the closing '>' of an IRI reference, or -1 if
// rest does not start one (whitespace before '>' means it is an operator).
func iriEnd(rest string) int {
	for i := 1; i < len(rest); i++ {
		switch rest[i] {
		case '>':
			if i == 1 {
				return -1
			}
			return i
		case '=':
			if i == 1 {
				return -1
			}
		case ' ', '\t', '\n', '\r', '"', '{', '}', '<':
			return -1
		}
	}
	return -1
}

func isNameRune(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func scanWhile(s string, ok func(rune) bool) string {
	for i, r := range s {
		if !ok(r) {
			return s[:i]
		}
	}
	return s
}

// scanPName reads a prefixed name or bare word. A trailing '.' is not part
// of the name because it terminates the statement.
func scanPName(s string) string {
	end := 0
	for i, r := range s {
		if r == ':' || r == '.' || isNameRune(r) {
			end = i + utf8.RuneLen(r)
			continue
		}
		break
	}
	word := s[:end]
	return strings.TrimRight(word, ".")
}

func isNumberStart(s string) bool {
	i := 0
	if s[0] == '+' || s[0] == '-' {
		i++
	}
	if i < len(s) && s[i] >= '0' && s[i] <= '9' {
		return true
	}
	return i+1 < len(s) && s[i] == '.' && s[i+1] >= '0' && s[i+1] <= '9'
}

func scanNumber(s string) string {
	i := 0
	if s[i] == '+' || s[i] == '-' {
		i++
	}
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i+1 < len(s) && s[i] == '.' && s[i+1] >= '0' && s[i+1] <= '9' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && s[j] >= '0' && s[j] <= '9' {
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			i = j
		}
	}
	return s[:i]
}
