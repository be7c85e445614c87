package message

// Reply is one parsed reply line.
type Reply struct {
	Header   ReplyHeader
	Keywords Keywords

	// Line is the original wire line, kept for logging. Empty for
	// locally synthesized replies.
	Line string
}

// Canonical renders the reply wire form: header, then the keyword list
// when non-empty.
func (r Reply) Canonical() string {
	s := r.Header.Canonical()
	if len(r.Keywords) > 0 {
		s += " " + r.Keywords.Canonical()
	}
	return s
}

// String returns the canonical form.
func (r Reply) String() string { return r.Canonical() }
