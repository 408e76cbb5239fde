package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/catalyst-network/Catalyst-sub014/src/delta"
	"github.com/catalyst-network/Catalyst-sub014/src/mempool"
	"github.com/catalyst-network/Catalyst-sub014/src/peers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	tip     []byte
	deltas  map[string]*delta.Delta
	pool    *mempool.Mempool
	members []*peers.Peer
}

func (f *fakeNode) GetStats() map[string]string {
	return map[string]string{"state": "Running"}
}

func (f *fakeNode) GetPeers() []*peers.Peer {
	return f.members
}

func (f *fakeNode) Tip() []byte {
	return f.tip
}

func (f *fakeNode) GetDelta(hash []byte) (*delta.Delta, error) {
	key := common.EncodeToString(hash)
	d, ok := f.deltas[key]
	if !ok {
		return nil, common.NewStoreErr("Delta", common.KeyNotFound, key)
	}
	return d, nil
}

func (f *fakeNode) SubmitTransaction(tx *delta.Transaction) (bool, error) {
	return f.pool.Add(tx)
}

func newTestService(t *testing.T) (*Service, *fakeNode) {
	f := &fakeNode{
		tip: []byte{0xAB, 0xCD},
		deltas: map[string]*delta.Delta{
			"0XABCD": {ProducerID: "0XPRODUCER", TimeStamp: 7},
		},
		pool:    mempool.NewMempool(1),
		members: []*peers.Peer{peers.NewProducer("0XAA", "addr", "node0")},
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_total",
		Help: "test",
	}))

	return NewService("127.0.0.1:0", f, registry, common.NewTestEntry(t, common.TestLogLevel)), f
}

func get(t *testing.T, s *Service, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestGetStatsAndTip(t *testing.T) {
	s, _ := newTestService(t)

	rec := get(t, s, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var stats map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, "Running", stats["state"])

	rec = get(t, s, "/tip")
	require.Equal(t, http.StatusOK, rec.Code)

	var tip map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tip))
	assert.Equal(t, "0XABCD", tip["tip"])
}

func TestGetPeers(t *testing.T) {
	s, _ := newTestService(t)

	rec := get(t, s, "/peers")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []*peers.Peer
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	require.Len(t, out, 1)
	assert.Equal(t, "node0", out[0].Moniker)
	assert.True(t, out[0].Producer)
}

func TestGetDelta(t *testing.T) {
	s, _ := newTestService(t)

	rec := get(t, s, "/delta/0xabcd")
	require.Equal(t, http.StatusOK, rec.Code)

	var d delta.Delta
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&d))
	assert.Equal(t, "0XPRODUCER", d.ProducerID)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/delta/0X0102").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/delta/nothex").Code)
}

func TestSubmitTransaction(t *testing.T) {
	s, f := newTestService(t)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/tx", strings.NewReader(body))
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec
	}

	tx := delta.Transaction{
		Sender:    "alice",
		Payload:   []byte("pay"),
		Fee:       1,
		TimeStamp: 2,
		Signature: delta.TxSignature{RawBytes: []byte("sig")},
	}
	bs, err := json.Marshal(tx)
	require.NoError(t, err)

	rec := post(string(bs))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accepted":true`)
	assert.Equal(t, 1, f.pool.Len())

	// Resubmission is not an error.
	rec = post(string(bs))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accepted":false`)

	other := tx
	other.Signature = delta.TxSignature{RawBytes: []byte("other")}
	bs, err = json.Marshal(other)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, post(string(bs)).Code)

	assert.Equal(t, http.StatusBadRequest, post("{").Code)

	// GET is not routed.
	assert.Equal(t, http.StatusMethodNotAllowed, get(t, s, "/tx").Code)
}

func TestMetrics(t *testing.T) {
	s, _ := newTestService(t)

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte("test_total 0")))
}
