package dfs

import (
	"sync"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/catalyst-network/Catalyst-sub014/src/crypto"
	"github.com/catalyst-network/Catalyst-sub014/src/delta"
)

// InmemStore implements the Store interface with a map. It can be shared by
// several nodes in tests to stand for a distributed file system.
type InmemStore struct {
	sync.RWMutex
	alg    crypto.HashAlgorithm
	bodies map[string][]byte
	tip    []byte
}

// NewInmemStore ...
func NewInmemStore(alg crypto.HashAlgorithm) *InmemStore {
	return &InmemStore{
		alg:    alg,
		bodies: make(map[string][]byte),
	}
}

// Put implements the Store interface.
func (s *InmemStore) Put(body *delta.Delta) ([]byte, error) {
	bs, err := body.Marshal()
	if err != nil {
		return nil, err
	}
	hash := s.alg.Sum(bs)

	s.Lock()
	s.bodies[common.EncodeToString(hash)] = bs
	s.Unlock()

	return hash, nil
}

// Get implements the Store interface.
func (s *InmemStore) Get(hash []byte) (*delta.Delta, error) {
	key := common.EncodeToString(hash)

	s.RLock()
	bs, ok := s.bodies[key]
	s.RUnlock()

	if !ok {
		return nil, common.NewStoreErr("Delta", common.KeyNotFound, key)
	}

	body := new(delta.Delta)
	if err := body.Unmarshal(bs); err != nil {
		return nil, common.NewStoreErr("Delta", common.Corrupted, key)
	}
	return body, nil
}

// SetTip implements the Store interface.
func (s *InmemStore) SetTip(hash []byte) error {
	s.Lock()
	defer s.Unlock()
	s.tip = hash
	return nil
}

// Tip implements the Store interface.
func (s *InmemStore) Tip() ([]byte, error) {
	s.RLock()
	defer s.RUnlock()
	if s.tip == nil {
		return nil, common.NewStoreErr("Tip", common.Empty, "")
	}
	return s.tip, nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}
