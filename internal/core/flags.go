package core

import "strings"

// foreignPrefix marks a flag set that came from the IMAP transport rather
// than a local Maildir
const foreignPrefix = "IMAP:"

// FlagSet is the stored flag representation of a message. Native (Maildir)
// flags are single letters ("RS"); foreign flags are a bracketed list of
// IMAP flag names ("IMAP:\Seen,\Answered").
type FlagSet string

// NewIMAPFlags encodes a list of IMAP flags
func NewIMAPFlags(flags []string) FlagSet {
	return FlagSet(foreignPrefix + strings.Join(flags, ","))
}

// NewMaildirFlags encodes Maildir info letters
func NewMaildirFlags(letters string) FlagSet {
	return FlagSet(letters)
}

// IsForeign reports whether the set holds IMAP flags
func (f FlagSet) IsForeign() bool {
	return strings.HasPrefix(string(f), foreignPrefix)
}

// IMAPFlags returns the individual IMAP flag names, or nil for native sets
func (f FlagSet) IMAPFlags() []string {
	if !f.IsForeign() {
		return nil
	}
	body := strings.TrimPrefix(string(f), foreignPrefix)
	if body == "" {
		return nil
	}
	return strings.Split(body, ",")
}

func (f FlagSet) hasIMAP(name string) bool {
	for _, flag := range f.IMAPFlags() {
		if strings.EqualFold(flag, name) {
			return true
		}
	}
	return false
}

// Answered reports whether the owner replied to the message
func (f FlagSet) Answered() bool {
	if f.IsForeign() {
		return f.hasIMAP(`\Answered`)
	}
	return strings.ContainsRune(string(f), 'R')
}

// Forwarded reports whether the owner forwarded the message
func (f FlagSet) Forwarded() bool {
	if f.IsForeign() {
		return f.hasIMAP("$Forwarded")
	}
	return strings.ContainsRune(string(f), 'P')
}

// Seen reports whether the message has been read
func (f FlagSet) Seen() bool {
	if f.IsForeign() {
		return f.hasIMAP(`\Seen`)
	}
	return strings.ContainsRune(string(f), 'S')
}

// OwnerActed reports whether the flags show the owner answered or forwarded
func (f FlagSet) OwnerActed() bool {
	return f.Answered() || f.Forwarded()
}
