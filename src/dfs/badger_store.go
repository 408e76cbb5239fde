package dfs

import (
	"fmt"
	"os"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/catalyst-network/Catalyst-sub014/src/crypto"
	"github.com/catalyst-network/Catalyst-sub014/src/delta"
	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	deltaPrefix = "delta"
	tipKey      = "tip"
)

// BadgerStore implements the Store interface on top of a Badger database.
type BadgerStore struct {
	alg  crypto.HashAlgorithm
	db   *badger.DB
	path string
}

// NewBadgerStore opens, or creates, the database in path.
func NewBadgerStore(alg crypto.HashAlgorithm, path string, logger *logrus.Entry) (*BadgerStore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, errors.Wrapf(err, "creating database directory %s", path)
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithLogger(logger.WithField("component", "badger"))

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening database %s", path)
	}

	return &BadgerStore{
		alg:  alg,
		db:   handle,
		path: path,
	}, nil
}

// StorePath returns the path of the database.
func (s *BadgerStore) StorePath() string {
	return s.path
}

//==============================================================================
//Keys

func deltaKey(hash []byte) []byte {
	return []byte(fmt.Sprintf("%s_%s", deltaPrefix, common.EncodeToString(hash)))
}

//==============================================================================
//Implement the Store interface

// Put implements the Store interface. Bodies are immutable, so writing the
// same body twice is harmless.
func (s *BadgerStore) Put(body *delta.Delta) ([]byte, error) {
	val, err := body.Marshal()
	if err != nil {
		return nil, err
	}
	hash := s.alg.Sum(val)

	//insert [hash] => [body bytes]
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(deltaKey(hash), val)
	})
	if err != nil {
		return nil, err
	}

	return hash, nil
}

// Get implements the Store interface.
func (s *BadgerStore) Get(hash []byte) (*delta.Delta, error) {
	key := deltaKey(hash)
	bs, err := s.get(key)
	if err != nil {
		return nil, mapError(err, "Delta", string(key))
	}

	body := new(delta.Delta)
	if err := body.Unmarshal(bs); err != nil {
		return nil, common.NewStoreErr("Delta", common.Corrupted, string(key))
	}
	return body, nil
}

// SetTip implements the Store interface.
func (s *BadgerStore) SetTip(hash []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(tipKey), hash)
	})
}

// Tip implements the Store interface.
func (s *BadgerStore) Tip() ([]byte, error) {
	tip, err := s.get([]byte(tipKey))
	if err != nil {
		if isDBKeyNotFound(err) {
			return nil, common.NewStoreErr("Tip", common.Empty, "")
		}
		return nil, err
	}
	return tip, nil
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) get(key []byte) ([]byte, error) {
	var res []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		res, err = item.ValueCopy(nil)
		return err
	})
	return res, err
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return common.NewStoreErr(name, common.KeyNotFound, key)
		}
	}
	return err
}
