package conversation

import "github.com/google/uuid"

// Identity names one client session to the dialogue service. It is created
// once per client instance and never persisted.
type Identity string

// NewIdentity returns a fresh random session identity
func NewIdentity() Identity {
	return Identity("user_" + uuid.NewString())
}

func (i Identity) String() string { return string(i) }
