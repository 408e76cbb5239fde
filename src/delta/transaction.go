package delta

import (
	"bytes"
	"sort"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/catalyst-network/Catalyst-sub014/src/crypto"
	"github.com/tendermint/tendermint/crypto/merkle"
)

// TxSignature is the signature carried by a transaction. Context is the
// secondary component used for ordering when two RawBytes are equal.
type TxSignature struct {
	RawBytes []byte
	Context  []byte
}

// Transaction is a pending entry of the mempool.
type Transaction struct {
	Sender    string
	Payload   []byte
	Fee       uint64
	TimeStamp int64 //unix nanoseconds
	Signature TxSignature
}

// Marshal returns the canonical encoding of the transaction.
func (tx *Transaction) Marshal() ([]byte, error) {
	return marshal(tx)
}

// Unmarshal ...
func (tx *Transaction) Unmarshal(data []byte) error {
	return unmarshal(data, tx)
}

// Size is the number of bytes the transaction counts for in a delta's byte
// budget.
func (tx *Transaction) Size() int {
	return len(tx.Sender) + len(tx.Payload) + 16 +
		len(tx.Signature.RawBytes) + len(tx.Signature.Context)
}

// Key identifies a transaction in the mempool. Both signature components are
// hex encoded so the separator cannot occur inside them.
func (tx *Transaction) Key() string {
	return common.EncodeToString(tx.Signature.RawBytes) + "/" + common.EncodeToString(tx.Signature.Context)
}

// CompareTransactions is the total order in which transactions are selected
// into a delta: fee descending, then timestamp descending, then signature raw
// bytes ascending, then signature context ascending. Byte slices compare
// lexicographically with a strict prefix sorting first.
func CompareTransactions(x, y *Transaction) int {
	if x.Fee != y.Fee {
		if x.Fee > y.Fee {
			return -1
		}
		return 1
	}

	if x.TimeStamp != y.TimeStamp {
		if x.TimeStamp > y.TimeStamp {
			return -1
		}
		return 1
	}

	if c := bytes.Compare(x.Signature.RawBytes, y.Signature.RawBytes); c != 0 {
		return c
	}

	return bytes.Compare(x.Signature.Context, y.Signature.Context)
}

// ByTotalOrder implements sort.Interface with CompareTransactions.
type ByTotalOrder []*Transaction

// Len implements the sort.Interface
func (a ByTotalOrder) Len() int { return len(a) }

// Swap implements the sort.Interface
func (a ByTotalOrder) Swap(i, j int) { a[i], a[j] = a[j], a[i] }

// Less implements the sort.Interface
func (a ByTotalOrder) Less(i, j int) bool { return CompareTransactions(a[i], a[j]) < 0 }

// SortTransactions sorts a copy of txs and returns it.
func SortTransactions(txs []*Transaction) []*Transaction {
	sorted := make([]*Transaction, len(txs))
	copy(sorted, txs)
	sort.Stable(ByTotalOrder(sorted))
	return sorted
}

// TransactionSetRoot is the merkle root over the digests of an ordered set of
// transactions.
func TransactionSetRoot(alg crypto.HashAlgorithm, txs []*Transaction) ([]byte, error) {
	leaves := make([][]byte, 0, len(txs))
	for _, tx := range txs {
		bs, err := tx.Marshal()
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, alg.Sum(bs))
	}
	return merkle.HashFromByteSlices(leaves), nil
}
