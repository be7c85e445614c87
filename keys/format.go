package keys

import (
	"fmt"
	"strings"

	"github.com/Subaru-PFS/tron-actorcore-sub000/message"
)

// The keyword format grammar validates a command's keyword list
// against a compiled template, e.g. "@move speed [label] (abs|rel)".
//
//	@name    positioned key, must appear next in order at the front
//	name     floating key, any order, used at most once
//	<name>   like name, but resolved against a dictionary so the
//	         keyword's values are validated against its signature
//	[...]    optional group, attempted but not required
//	(a|b)    alternation, exactly one alternative must match
//
// A bare (non-dictionary) name matches a keyword with no values.

// KeyResolver resolves <name> references while compiling a format
// string. *Dictionary implements it.
type KeyResolver interface {
	Key(name string) (*Key, bool)
}

// keywordsIterator is a cursor over a command's keyword list. Consumers
// type-convert keywords in place as they advance past them.
type keywordsIterator struct {
	keys  message.Keywords
	index int
}

func (it *keywordsIterator) keyword() *message.Keyword {
	if it.index >= len(it.keys) {
		return nil
	}
	return &it.keys[it.index]
}

func (it *keywordsIterator) advance() { it.index++ }

// snapshot deep-copies the remaining keywords so a failed consumer can
// roll back any values it type-converted.
func (it *keywordsIterator) snapshot() ([]message.Keyword, int) {
	rest := make([]message.Keyword, len(it.keys)-it.index)
	for i := range rest {
		kw := it.keys[it.index+i]
		kw.Values = append(message.Values(nil), kw.Values...)
		rest[i] = kw
	}
	return rest, it.index
}

func (it *keywordsIterator) restore(rest []message.Keyword, index int) {
	copy(it.keys[index:], rest)
	it.index = index
}

// consumer is one node of a compiled format template.
type consumer interface {
	consume(it *keywordsIterator) bool
	String() string
}

// cmdKey consumes one keyword matching its key by name, converting the
// keyword's values against the key's signature.
type cmdKey struct {
	key *Key
}

func (c cmdKey) String() string { return c.key.Name }

func (c cmdKey) consume(it *keywordsIterator) bool {
	kw := it.keyword()
	if kw == nil || !c.key.Consume(kw) {
		return false
	}
	it.advance()
	return true
}

// group consumes its positioned keys in order, then its floating keys
// in any order, each at most once. Non-optional floating keys must all
// match.
type group struct {
	positioned []consumer
	floating   []consumer
}

func (g group) String() string {
	parts := make([]string, 0, len(g.positioned)+len(g.floating))
	for _, c := range g.positioned {
		parts = append(parts, "@"+c.String())
	}
	for _, c := range g.floating {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, " ")
}

func (g group) consume(it *keywordsIterator) bool {
	for _, key := range g.positioned {
		if !key.consume(it) {
			return false
		}
	}
	used := make([]bool, len(g.floating))
	for it.keyword() != nil {
		before := it.index
		for i, key := range g.floating {
			if used[i] {
				continue
			}
			if key.consume(it) && it.index != before {
				used[i] = true
				break
			}
		}
		if it.index == before {
			break
		}
	}
	for i, key := range g.floating {
		if _, opt := key.(optional); !opt && !used[i] {
			return false
		}
	}
	return true
}

// oneOf tries alternatives in order; exactly one must consume the next
// keyword.
type oneOf struct {
	alts []consumer
}

func (o oneOf) String() string {
	parts := make([]string, len(o.alts))
	for i, c := range o.alts {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, "|") + ")"
}

func (o oneOf) consume(it *keywordsIterator) bool {
	kw := it.keyword()
	if kw == nil {
		return false
	}
	checkpoint := append(message.Values(nil), kw.Values...)
	for _, alt := range o.alts {
		if alt.consume(it) {
			return true
		}
	}
	copy(kw.Values, checkpoint)
	return false
}

// optional attempts its inner consumer and rolls the cursor back on
// failure; it always succeeds.
type optional struct {
	inner consumer
}

func (o optional) String() string { return "[" + o.inner.String() + "]" }

func (o optional) consume(it *keywordsIterator) bool {
	rest, index := it.snapshot()
	if !o.inner.consume(it) {
		it.restore(rest, index)
	}
	return true
}

// CompileFormat compiles a format string into a consumer tree.
// Dictionary references <name> are resolved through dict, which may be
// nil when the template uses none.
func CompileFormat(format string, dict KeyResolver) (consumer, error) {
	p := &formatParser{src: strings.TrimRight(format, "\n"), dict: dict}
	g, err := p.parseGroup()
	if err != nil {
		return nil, fmt.Errorf("format %q: %w", format, err)
	}
	p.skipSpace()
	if !p.eof() {
		return nil, fmt.Errorf("format %q: unexpected %q", format, p.rest())
	}
	return g, nil
}

// formatParser is a recursive descent parser for the format grammar.
type formatParser struct {
	src  string
	pos  int
	dict KeyResolver
}

func (p *formatParser) eof() bool    { return p.pos >= len(p.src) }
func (p *formatParser) peek() byte   { return p.src[p.pos] }
func (p *formatParser) rest() string { return p.src[p.pos:] }

func (p *formatParser) skipSpace() {
	for !p.eof() && (p.peek() == ' ' || p.peek() == '\t') {
		p.pos++
	}
}

// parseGroup reads a whitespace-separated item list: positioned keys
// first, floating keys after.
func (p *formatParser) parseGroup() (group, error) {
	var g group
	for {
		p.skipSpace()
		if p.eof() || p.peek() == ')' || p.peek() == ']' {
			break
		}
		if p.peek() == '@' {
			p.pos++
			if len(g.floating) > 0 {
				return g, fmt.Errorf("positioned key after floating keys")
			}
			key, err := p.parseKeyword()
			if err != nil {
				return g, err
			}
			g.positioned = append(g.positioned, key)
			continue
		}
		key, err := p.parseKeyword()
		if err != nil {
			return g, err
		}
		g.floating = append(g.floating, key)
	}
	if len(g.positioned) == 0 && len(g.floating) == 0 {
		return g, fmt.Errorf("empty group")
	}
	return g, nil
}

// parseKeyword reads one item: a bracketed group, a parenthesized
// group, or an alternation chain of single keys.
func (p *formatParser) parseKeyword() (consumer, error) {
	switch p.peek() {
	case '[':
		p.pos++
		g, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		if p.eof() || p.peek() != ']' {
			return nil, fmt.Errorf("missing ']'")
		}
		p.pos++
		return optional{inner: g}, nil
	case '(':
		p.pos++
		g, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		if p.eof() || p.peek() != ')' {
			return nil, fmt.Errorf("missing ')'")
		}
		p.pos++
		return g, nil
	}

	first, err := p.parseOneKeyword()
	if err != nil {
		return nil, err
	}
	if p.eof() || p.peek() != '|' {
		return first, nil
	}
	alts := []consumer{first}
	for !p.eof() && p.peek() == '|' {
		p.pos++
		next, err := p.parseOneKeyword()
		if err != nil {
			return nil, err
		}
		alts = append(alts, next)
	}
	return oneOf{alts: alts}, nil
}

// parseOneKeyword reads a bare name or a <name> dictionary reference.
func (p *formatParser) parseOneKeyword() (consumer, error) {
	if !p.eof() && p.peek() == '<' {
		p.pos++
		name, err := p.parseName()
		if err != nil {
			return nil, err
		}
		if p.eof() || p.peek() != '>' {
			return nil, fmt.Errorf("missing '>' after %q", name)
		}
		p.pos++
		if p.dict == nil {
			return nil, fmt.Errorf("reference <%s> with no dictionary", name)
		}
		key, ok := p.dict.Key(name)
		if !ok {
			return nil, fmt.Errorf("reference <%s> not in dictionary", name)
		}
		return cmdKey{key: key}, nil
	}
	name, err := p.parseName()
	if err != nil {
		return nil, err
	}
	// A bare name matches a keyword carrying no values.
	return cmdKey{key: &Key{Name: name}}, nil
}

func (p *formatParser) parseName() (string, error) {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
			(p.pos > start && (c >= '0' && c <= '9' || c == '.' || c == '_')) {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		if p.eof() {
			return "", fmt.Errorf("expected keyword name at end of format")
		}
		return "", fmt.Errorf("expected keyword name at %q", p.rest())
	}
	return p.src[start:p.pos], nil
}
