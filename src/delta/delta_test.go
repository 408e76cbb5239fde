package delta

import (
	"fmt"
	"testing"
	"time"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/catalyst-network/Catalyst-sub014/src/crypto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type staticProducers []string

func (s staticProducers) CurrentAuthorizedProducers() []string {
	return s
}

type staticMempool []*Transaction

func (s staticMempool) Snapshot() []*Transaction {
	return s
}

func testAlg(t testing.TB) crypto.HashAlgorithm {
	alg, err := crypto.LookupHashAlgorithm(crypto.SHA256)
	require.NoError(t, err)
	return alg
}

func testProducers(n int) staticProducers {
	res := staticProducers{}
	for i := 0; i < n; i++ {
		res = append(res, fmt.Sprintf("0XPRODUCER%02d", i))
	}
	return res
}

func testCacheConfig() CacheConfig {
	return CacheConfig{Rounds: 16, TTL: time.Minute}
}

func testCandidate(alg crypto.HashAlgorithm, prev []byte, producer string, seed string) *CandidateDelta {
	return NewCandidateDelta(alg, prev, producer, alg.Sum([]byte(seed)))
}

func testLogger(t testing.TB) *logrus.Entry {
	return common.NewTestEntry(t, logrus.DebugLevel)
}
