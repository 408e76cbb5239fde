package delta

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(fee uint64, ts int64, raw, ctx string) *Transaction {
	return &Transaction{
		Sender:    "sender",
		Payload:   []byte("payload"),
		Fee:       fee,
		TimeStamp: ts,
		Signature: TxSignature{RawBytes: []byte(raw), Context: []byte(ctx)},
	}
}

func TestTransactionKeyIsUnambiguous(t *testing.T) {
	a := tx(1, 1, "a/", "b")
	b := tx(1, 1, "a", "/b")
	assert.NotEqual(t, a.Key(), b.Key())

	assert.NotEqual(t, tx(1, 1, "ab", "").Key(), tx(1, 1, "a", "b").Key())
	assert.Equal(t, a.Key(), tx(9, 9, "a/", "b").Key())
}

func TestCompareTransactionsLevels(t *testing.T) {
	cases := []struct {
		name string
		x, y *Transaction
	}{
		{"higher fee first", tx(10, 1, "a", "a"), tx(5, 9, "a", "a")},
		{"newer first", tx(5, 9, "b", "a"), tx(5, 1, "a", "a")},
		{"lower signature first", tx(5, 1, "a", "z"), tx(5, 1, "b", "a")},
		{"prefix signature first", tx(5, 1, "ab", "z"), tx(5, 1, "abc", "a")},
		{"lower context first", tx(5, 1, "ab", "a"), tx(5, 1, "ab", "b")},
		{"prefix context first", tx(5, 1, "ab", "c"), tx(5, 1, "ab", "cd")},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, -1, CompareTransactions(c.x, c.y))
			assert.Equal(t, 1, CompareTransactions(c.y, c.x))
		})
	}

	x := tx(1, 2, "s", "c")
	assert.Equal(t, 0, CompareTransactions(x, tx(1, 2, "s", "c")))
}

func TestCompareTransactionsAntisymmetric(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	randBytes := func() string {
		b := make([]byte, r.Intn(3))
		for i := range b {
			b[i] = byte(r.Intn(3))
		}
		return string(b)
	}

	txs := []*Transaction{}
	for i := 0; i < 200; i++ {
		txs = append(txs, tx(uint64(r.Intn(3)), int64(r.Intn(3)), randBytes(), randBytes()))
	}

	for _, x := range txs {
		for _, y := range txs {
			assert.Equal(t, CompareTransactions(x, y), -CompareTransactions(y, x))
			if CompareTransactions(x, y) == 0 {
				assert.Equal(t, x.Fee, y.Fee)
				assert.Equal(t, x.TimeStamp, y.TimeStamp)
				assert.True(t, bytes.Equal(x.Signature.RawBytes, y.Signature.RawBytes))
				assert.True(t, bytes.Equal(x.Signature.Context, y.Signature.Context))
			}
		}
	}
}

func TestSortTransactionsIndependentOfInputOrder(t *testing.T) {
	alg := testAlg(t)
	txs := []*Transaction{
		tx(1, 1, "a", ""),
		tx(3, 1, "b", ""),
		tx(3, 2, "c", ""),
		tx(2, 5, "d", "x"),
		tx(2, 5, "d", "w"),
	}

	sorted := SortTransactions(txs)
	require.Len(t, sorted, 5)
	assert.Equal(t, "c", string(sorted[0].Signature.RawBytes))
	assert.Equal(t, "b", string(sorted[1].Signature.RawBytes))
	assert.Equal(t, "w", string(sorted[2].Signature.Context))
	assert.Equal(t, "x", string(sorted[3].Signature.Context))
	assert.Equal(t, "a", string(sorted[4].Signature.RawBytes))

	reversed := []*Transaction{}
	for i := len(txs) - 1; i >= 0; i-- {
		reversed = append(reversed, txs[i])
	}

	root1, err := TransactionSetRoot(alg, sorted)
	require.NoError(t, err)
	root2, err := TransactionSetRoot(alg, SortTransactions(reversed))
	require.NoError(t, err)
	assert.Equal(t, root1, root2)

	// the input slice is left untouched
	assert.Equal(t, "a", string(txs[0].Signature.RawBytes))
}
