package session

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-catalog-client/storage"
)

// Shared-store keys for the persisted session record.
const (
	userKey  = "app:user"
	tokenKey = "app:token"
)

// CredentialRepo persists the session record (identity + bearer token) across
// process restarts. Implementations must be safe for concurrent use.
type CredentialRepo interface {
	// Load returns the persisted identity and token; both zero when absent.
	Load() (*User, string)

	// Save persists the identity and token together.
	Save(user *User, token string)

	// Clear removes the persisted record. Must be idempotent.
	Clear()

	// Token returns the persisted bearer token, or "" when absent. This is
	// what the HTTP client attaches to outgoing requests.
	Token() string
}

// KVCredentials stores the session record in the shared origin store, so
// every tab of the origin sees the same credentials.
type KVCredentials struct {
	kv storage.KV
}

var _ CredentialRepo = (*KVCredentials)(nil)

// NewKVCredentials creates a CredentialRepo over kv. A nil kv degrades to
// storage.Discard, which behaves like an always-empty record.
func NewKVCredentials(kv storage.KV) *KVCredentials {
	if kv == nil {
		kv = storage.Discard
	}
	return &KVCredentials{kv: kv}
}

func (c *KVCredentials) Load() (*User, string) {
	token, _ := c.kv.Get(tokenKey)
	raw, ok := c.kv.Get(userKey)
	if !ok || raw == "" {
		return nil, token
	}
	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		log.Debug().Err(err).Msg("discarding unreadable persisted user record")
		return nil, token
	}
	return &user, token
}

func (c *KVCredentials) Save(user *User, token string) {
	if user != nil {
		if raw, err := json.Marshal(user); err == nil {
			c.kv.Set(userKey, string(raw))
		}
	}
	c.kv.Set(tokenKey, token)
}

func (c *KVCredentials) Clear() {
	c.kv.Delete(tokenKey)
	c.kv.Delete(userKey)
}

func (c *KVCredentials) Token() string {
	token, _ := c.kv.Get(tokenKey)
	return token
}
