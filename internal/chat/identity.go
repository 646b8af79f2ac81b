package chat

import "sync"

// Placeholder identities used until the user edits them.
const (
	DefaultLocalIdentity  = "user1"
	DefaultTargetIdentity = "user2"
)

// Identities holds the local identity (used to open the connection) and the
// target identity (used only as the addressee of sends).
// No format or uniqueness rule is enforced.
type Identities struct {
	mu     sync.RWMutex
	local  string
	target string
}

// NewIdentities returns the placeholder pair.
func NewIdentities() *Identities {
	return &Identities{
		local:  DefaultLocalIdentity,
		target: DefaultTargetIdentity,
	}
}

// Local returns the identity the connection is opened under.
func (i *Identities) Local() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.local
}

// Target returns the addressee of outgoing messages.
func (i *Identities) Target() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.target
}

// SetLocal replaces the local identity.
func (i *Identities) SetLocal(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.local = id
}

// SetTarget replaces the target identity.
func (i *Identities) SetTarget(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.target = id
}
