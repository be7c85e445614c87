package message

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Subaru-PFS/tron-actorcore-sub000/errors"
)

// ParseReply parses one reply line. The returned reply keeps the
// original line. Failures wrap errors.ErrParse.
func ParseReply(line string) (Reply, error) {
	s := newScanner(line)

	cmdr, ok := s.word()
	if !ok || !strings.Contains(cmdr, ".") {
		return Reply{}, parseErr(line, "missing commander ID")
	}
	idTok, ok := s.word()
	if !ok {
		return Reply{}, parseErr(line, "missing command ID")
	}
	cmdID, err := strconv.Atoi(idTok)
	if err != nil {
		return Reply{}, parseErr(line, "bad command ID %q", idTok)
	}
	actor, ok := s.word()
	if !ok {
		return Reply{}, parseErr(line, "missing actor")
	}
	codeTok, ok := s.word()
	if !ok || len(codeTok) != 1 {
		return Reply{}, parseErr(line, "missing reply code")
	}
	code, err := ParseMsgCode(codeTok[0])
	if err != nil {
		return Reply{}, parseErr(line, "%v", err)
	}

	keywords, err := s.keywords(';')
	if err != nil {
		return Reply{}, parseErr(line, "%v", err)
	}
	program, user := SplitCmdr(cmdr)
	return Reply{
		Header: ReplyHeader{
			Program:   program,
			User:      user,
			CommandID: cmdID,
			Actor:     actor,
			Code:      code,
		},
		Keywords: keywords,
		Line:     line,
	}, nil
}

// ParseCommand parses one command line. Positional values directly
// after the verb are recognized when the first item is quoted, starts
// like a number, or contains a comma; everything else is a keyword.
// Failures wrap errors.ErrParse.
func ParseCommand(line string) (Command, error) {
	s := newScanner(line)

	verb, ok := s.word()
	if !ok {
		return Command{}, parseErr(line, "missing verb")
	}
	if err := validateVerb(verb); err != nil {
		return Command{}, parseErr(line, "%v", err)
	}

	cmd := Command{Verb: verb, Line: line}
	s.skipSpace()
	if startsValueList(s.rest()) {
		vals, err := s.values()
		if err != nil {
			return Command{}, parseErr(line, "%v", err)
		}
		cmd.Values = vals
	}

	keywords, err := s.keywords(0)
	if err != nil {
		return Command{}, parseErr(line, "%v", err)
	}
	cmd.Keywords = keywords
	return cmd, nil
}

func parseErr(line, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%w: %s in %q", errors.ErrParse, msg, line)
}

// startsValueList reports whether the rest of a command line opens with
// positional values rather than a keyword.
func startsValueList(rest string) bool {
	if rest == "" {
		return false
	}
	switch c := rest[0]; {
	case c == '"':
		return true
	case c >= '0' && c <= '9', c == '+', c == '-', c == '.':
		return true
	}
	item := rest
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		item = rest[:i]
	}
	eq := strings.IndexByte(item, '=')
	comma := strings.IndexByte(item, ',')
	return comma >= 0 && (eq < 0 || comma < eq)
}

// scanner walks one wire line.
type scanner struct {
	s   string
	pos int
}

func newScanner(line string) *scanner {
	return &scanner{s: strings.TrimRight(line, "\r\n")}
}

func (s *scanner) eof() bool { return s.pos >= len(s.s) }

func (s *scanner) peek() byte { return s.s[s.pos] }

func (s *scanner) rest() string { return s.s[s.pos:] }

func (s *scanner) skipSpace() {
	for !s.eof() && (s.peek() == ' ' || s.peek() == '\t') {
		s.pos++
	}
}

// word reads a whitespace-delimited token, used for header fields.
func (s *scanner) word() (string, bool) {
	s.skipSpace()
	start := s.pos
	for !s.eof() && s.peek() != ' ' && s.peek() != '\t' {
		s.pos++
	}
	if s.pos == start {
		return "", false
	}
	return s.s[start:s.pos], true
}

// keywords reads the remaining keyword list. sep is the inter-keyword
// delimiter (';' for replies, 0 for whitespace-delimited command
// keywords).
func (s *scanner) keywords(sep byte) (Keywords, error) {
	var ks Keywords
	for {
		s.skipSpace()
		if s.eof() {
			return ks, nil
		}
		k, err := s.keyword()
		if err != nil {
			return nil, err
		}
		ks = append(ks, k)

		s.skipSpace()
		if s.eof() {
			return ks, nil
		}
		if sep != 0 {
			if s.peek() != sep {
				return nil, fmt.Errorf("expected %q before %q", string(sep), s.rest())
			}
			s.pos++
		}
	}
}

// keyword reads one "name", "name=", or "name=values" item. "raw="
// captures the rest of the line verbatim.
func (s *scanner) keyword() (Keyword, error) {
	start := s.pos
	for !s.eof() {
		c := s.peek()
		if c == '=' || c == ';' || c == ' ' || c == '\t' {
			break
		}
		s.pos++
	}
	name := s.s[start:s.pos]
	if err := validateKeywordName(name); err != nil {
		return Keyword{}, err
	}
	if s.eof() || s.peek() != '=' {
		return Keyword{Name: name}, nil
	}
	s.pos++ // '='

	if strings.EqualFold(name, RawKeyword) {
		raw := s.rest()
		s.pos = len(s.s)
		return Keyword{Name: name, Values: Values{{Raw: raw}}}, nil
	}

	// "kw=" with nothing following carries one empty value.
	if s.eof() || s.peek() == ';' || s.peek() == ' ' || s.peek() == '\t' {
		return Keyword{Name: name, Values: Values{{}}}, nil
	}
	vals, err := s.values()
	if err != nil {
		return Keyword{}, err
	}
	return Keyword{Name: name, Values: vals}, nil
}

// values reads a comma-separated value list. Whitespace is tolerated
// after each comma.
func (s *scanner) values() (Values, error) {
	var vals Values
	for {
		v, err := s.value()
		if err != nil {
			return nil, err
		}
		vals = append(vals, Value{Raw: v})
		if s.eof() || s.peek() != ',' {
			return vals, nil
		}
		s.pos++ // ','
		s.skipSpace()
	}
}

// value reads one quoted or bare value token.
func (s *scanner) value() (string, error) {
	if !s.eof() && s.peek() == '"' {
		return s.quoted()
	}
	start := s.pos
	for !s.eof() {
		c := s.peek()
		if c == ' ' || c == '\t' || c == ',' || c == ';' || c == '=' || c == '"' {
			break
		}
		s.pos++
	}
	if !s.eof() && (s.peek() == '=' || s.peek() == '"') {
		return "", fmt.Errorf("unexpected %q in value", string(s.peek()))
	}
	return s.s[start:s.pos], nil
}

// quoted reads a double-quoted value with backslash escapes.
func (s *scanner) quoted() (string, error) {
	s.pos++ // opening '"'
	var b strings.Builder
	for !s.eof() {
		c := s.peek()
		s.pos++
		switch c {
		case '\\':
			if s.eof() {
				return "", fmt.Errorf("dangling escape in quoted value")
			}
			b.WriteByte(s.peek())
			s.pos++
		case '"':
			return b.String(), nil
		default:
			b.WriteByte(c)
		}
	}
	return "", fmt.Errorf("unterminated quoted value")
}
