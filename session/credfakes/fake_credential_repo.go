// Package credfakes provides an in-memory CredentialRepo for tests.
package credfakes

import (
	"sync"

	"github.com/jrsteele09/go-catalog-client/session"
)

var _ session.CredentialRepo = (*FakeCredentialRepo)(nil)

type FakeCredentialRepo struct {
	lock  sync.RWMutex
	user  *session.User
	token string

	// ClearCalls counts Clear invocations, letting tests assert idempotent
	// logout behaviour.
	ClearCalls int
}

func NewFakeCredentialRepo() *FakeCredentialRepo {
	return &FakeCredentialRepo{}
}

func (r *FakeCredentialRepo) Load() (*session.User, string) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.user == nil {
		return nil, r.token
	}
	u := *r.user
	return &u, r.token
}

func (r *FakeCredentialRepo) Save(user *session.User, token string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if user != nil {
		u := *user
		r.user = &u
	}
	r.token = token
}

func (r *FakeCredentialRepo) Clear() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.user = nil
	r.token = ""
	r.ClearCalls++
}

func (r *FakeCredentialRepo) Token() string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.token
}
