package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/voltway/distctl/internal/storage"
)

// PersistKey is the storage key of the session slice
const PersistKey = "session"

// Persister saves and restores the durable session slice
type Persister interface {
	// Load returns nil, nil when nothing is stored and ErrCorruptState when
	// the stored value cannot be decoded.
	Load() (*Persisted, error)
	Save(Persisted) error
	Clear() error
}

// KVPersister stores the slice as JSON in a key/value store
type KVPersister struct {
	kv  storage.KV
	key string
}

// NewKVPersister creates a persister writing under PersistKey
func NewKVPersister(kv storage.KV) *KVPersister {
	return &KVPersister{kv: kv, key: PersistKey}
}

func (p *KVPersister) Load() (*Persisted, error) {
	raw, err := p.kv.Get(p.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var slice Persisted
	if err := json.Unmarshal([]byte(raw), &slice); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return &slice, nil
}

func (p *KVPersister) Save(slice Persisted) error {
	data, err := json.Marshal(slice)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return p.kv.Set(p.key, string(data))
}

func (p *KVPersister) Clear() error {
	return p.kv.Delete(p.key)
}
