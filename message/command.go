package message

import (
	"fmt"
	"strings"
)

// Command is one parsed command line: a verb, optional positional
// values, and optional keywords. On the wire, command keywords are
// whitespace separated rather than semicolon separated.
type Command struct {
	Verb     string
	Values   Values
	Keywords Keywords

	// Line is the original wire line, kept for logging.
	Line string
}

// NewCommand builds a command after validating the verb.
func NewCommand(verb string, values Values, keywords Keywords) (Command, error) {
	if err := validateVerb(verb); err != nil {
		return Command{}, err
	}
	return Command{Verb: verb, Values: values, Keywords: keywords}, nil
}

// Canonical renders the command wire form.
func (c Command) Canonical() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(c.Verb))
	if len(c.Values) > 0 {
		b.WriteByte(' ')
		b.WriteString(c.Values.Canonical())
	}
	for _, k := range c.Keywords {
		b.WriteByte(' ')
		b.WriteString(k.Canonical())
	}
	return b.String()
}

// String returns the canonical form.
func (c Command) String() string { return c.Canonical() }

// validateVerb rejects verbs that cannot head a command line. Dots are
// reserved for commander IDs and the name "raw" for verbatim payloads.
func validateVerb(verb string) error {
	if verb == "" {
		return fmt.Errorf("empty command verb")
	}
	if strings.EqualFold(verb, RawKeyword) {
		return fmt.Errorf("command verb %q is reserved", verb)
	}
	if strings.ContainsAny(verb, ". \t,=;\"") {
		return fmt.Errorf("invalid command verb %q", verb)
	}
	return nil
}
