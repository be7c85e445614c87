package keys

import (
	"fmt"
	"strings"

	"github.com/Subaru-PFS/tron-actorcore-sub000/errors"
	"github.com/Subaru-PFS/tron-actorcore-sub000/message"
)

// CmdSpec validates commands for one verb: positional values against a
// type signature, keywords against a compiled format template.
type CmdSpec struct {
	Verb   string
	Values TypedValues
	Format string
	Help   string

	consumer consumer
}

// NewCmdSpec compiles a command template. format may be empty for a
// verb taking no keywords; dict resolves <name> references.
func NewCmdSpec(verb string, values TypedValues, format string, dict KeyResolver) (*CmdSpec, error) {
	if verb == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("empty verb"), "keys.CmdSpec", "New", "compile template")
	}
	spec := &CmdSpec{Verb: verb, Values: values, Format: format}
	if format != "" {
		c, err := CompileFormat(format, dict)
		if err != nil {
			return nil, errors.WrapInvalid(err, "keys.CmdSpec", "New", "compile template for "+verb)
		}
		spec.consumer = c
	}
	return spec, nil
}

// Validate matches cmd against the template, type-converting its
// values and keyword values in place. On failure cmd is restored to
// its pre-call state and the error wraps errors.ErrValidation. A
// command is valid only when every keyword was consumed.
func (s *CmdSpec) Validate(cmd *message.Command) error {
	if !strings.EqualFold(cmd.Verb, s.Verb) {
		return s.invalid(cmd, "verb is not %q", s.Verb)
	}
	if !s.Values.Consume(cmd.Values) {
		return s.invalid(cmd, "values %v do not match %s", cmd.Values.Strings(), s.Values)
	}

	checkpoint := cloneKeywords(cmd.Keywords)
	it := &keywordsIterator{keys: cmd.Keywords}
	if s.consumer != nil && !s.consumer.consume(it) {
		restoreKeywords(cmd.Keywords, checkpoint)
		return s.invalid(cmd, "keywords do not match %q", s.Format)
	}
	if kw := it.keyword(); kw != nil {
		restoreKeywords(cmd.Keywords, checkpoint)
		return s.invalid(cmd, "unmatched keyword %q", kw.Name)
	}
	return nil
}

func (s *CmdSpec) invalid(cmd *message.Command, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", errors.ErrValidation, cmd.Canonical(), fmt.Sprintf(format, args...))
}

// Describe renders the template for help output.
func (s *CmdSpec) Describe() string {
	text := fmt.Sprintf("%12s: %s\n", "Command", s.Verb)
	if s.Help != "" {
		text += fmt.Sprintf("%12s: %s\n", "Description", s.Help)
	}
	text += fmt.Sprintf("%12s: %s\n", "Values", s.Values.Descriptor())
	text += fmt.Sprintf("%12s: %s\n", "Keywords", s.Format)
	return text
}

func cloneKeywords(ks message.Keywords) message.Keywords {
	out := make(message.Keywords, len(ks))
	for i, kw := range ks {
		kw.Values = append(message.Values(nil), kw.Values...)
		out[i] = kw
	}
	return out
}

func restoreKeywords(dst, saved message.Keywords) {
	copy(dst, saved)
}
