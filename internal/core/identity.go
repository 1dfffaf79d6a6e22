package core

// Identity is the registry's record of one joined connection.
// Records are values: replacing one means removing and reinserting it.
type Identity struct {
	Handle    string
	Username  string
	PublicKey string // empty when the deployment distributes keys out-of-band
}

// HasPublicKey reports whether the participant announced key material.
func (i Identity) HasPublicKey() bool {
	return i.PublicKey != ""
}
