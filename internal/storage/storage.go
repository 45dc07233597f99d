// Package storage provides the durable key/value slots the client keeps
// between invocations: the session slice and the last visited path.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a key has no stored value
var ErrNotFound = errors.New("storage: key not found")

// KV is a durable string-valued key/value store.
//
// Take returns the stored value and deletes it as one step, so a value can be
// consumed at most once even if Take is re-entered.
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Take(key string) (string, error)
}

// Backend names accepted by Open
const (
	BackendKeyring = "keyring"
	BackendFile    = "file"
	BackendSQLite  = "sqlite"
	BackendMemory  = "memory"
)

// Open returns the backend selected by name. dir is used by the file and
// sqlite backends.
func Open(backend, dir string) (KV, error) {
	switch strings.ToLower(backend) {
	case "", BackendKeyring:
		return NewKeyring(KeyringService), nil
	case BackendFile:
		return NewFile(filepath.Join(dir, "state.json")), nil
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dir, "state.sqlite"))
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (use keyring, file or sqlite)", backend)
	}
}

// prefixed scopes every key of an underlying store under a namespace
type prefixed struct {
	kv     KV
	prefix string
}

// WithPrefix scopes all keys under prefix, so that one physical store can hold
// state for several gateway profiles.
func WithPrefix(kv KV, prefix string) KV {
	if prefix == "" {
		return kv
	}
	return &prefixed{kv: kv, prefix: prefix + "/"}
}

func (p *prefixed) Get(key string) (string, error)  { return p.kv.Get(p.prefix + key) }
func (p *prefixed) Set(key, value string) error     { return p.kv.Set(p.prefix+key, value) }
func (p *prefixed) Delete(key string) error         { return p.kv.Delete(p.prefix + key) }
func (p *prefixed) Take(key string) (string, error) { return p.kv.Take(p.prefix + key) }
