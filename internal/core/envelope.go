package core

import "strings"

const envelopeSeparator = ":"

// Envelope carries the initialization vector and ciphertext of a private
// message. Both parts are opaque to the server (base64 on the wire).
type Envelope struct {
	IV         string
	Ciphertext string
}

// ParseEnvelope splits the colon-delimited "iv:ciphertext" form.
// Anything other than exactly two parts is rejected.
func ParseEnvelope(raw string) (Envelope, error) {
	parts := strings.Split(raw, envelopeSeparator)
	if len(parts) != 2 {
		return Envelope{}, ErrMalformedEnvelope
	}
	return Envelope{IV: parts[0], Ciphertext: parts[1]}, nil
}

// JoinEnvelope builds the textual form from pre-split fields and validates it
// the same way ParseEnvelope does, so neither field may contain a separator.
func JoinEnvelope(iv, ciphertext string) (Envelope, error) {
	return ParseEnvelope(iv + envelopeSeparator + ciphertext)
}

// String returns the wire form, byte-identical to what was parsed.
func (e Envelope) String() string {
	return e.IV + envelopeSeparator + e.Ciphertext
}
