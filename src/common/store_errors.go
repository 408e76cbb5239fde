package common

import "fmt"

// StoreErrType enumerates the kinds of StoreErr
type StoreErrType uint32

const (
	// KeyNotFound means nothing is stored under the requested key
	KeyNotFound StoreErrType = iota
	// KeyAlreadyExists means a write would overwrite immutable content
	KeyAlreadyExists
	// Empty means the store holds no value of the requested kind yet
	Empty
	// Corrupted means the stored bytes could not be decoded
	Corrupted
)

// StoreErr is the error returned by the stores of this module. It records the
// kind of data that was requested, the key, and what went wrong.
type StoreErr struct {
	dataType string
	errType  StoreErrType
	key      string
}

// NewStoreErr ...
func NewStoreErr(dataType string, errType StoreErrType, key string) StoreErr {
	return StoreErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// Error ...
func (e StoreErr) Error() string {
	m := ""
	switch e.errType {
	case KeyNotFound:
		m = "Not Found"
	case KeyAlreadyExists:
		m = "Key Already Exists"
	case Empty:
		m = "Empty"
	case Corrupted:
		m = "Corrupted"
	}

	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, m)
}

// IsStore checks that an error is of type StoreErr and that it's code matches
// the provided StoreErr code.
func IsStore(err error, t StoreErrType) bool {
	storeErr, ok := err.(StoreErr)
	return ok && storeErr.errType == t
}
