package deltanode

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"time"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/catalyst-network/Catalyst-sub014/src/config"
	"github.com/catalyst-network/Catalyst-sub014/src/crypto/keys"
	"github.com/catalyst-network/Catalyst-sub014/src/delta"
	"github.com/catalyst-network/Catalyst-sub014/src/dfs"
	"github.com/catalyst-network/Catalyst-sub014/src/mempool"
	"github.com/catalyst-network/Catalyst-sub014/src/net"
	"github.com/catalyst-network/Catalyst-sub014/src/node"
	"github.com/catalyst-network/Catalyst-sub014/src/peers"
	"github.com/catalyst-network/Catalyst-sub014/src/service"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Engine is the actor that puts together the components of a delta node: the
// key, the peer set, the store, the chain tracker, the transport, the node and
// the HTTP service.
type Engine struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Store     dfs.Store
	Chain     *delta.ChainTracker
	Peers     *peers.SetProvider
	Mempool   *mempool.Mempool
	Registry  *prometheus.Registry
	Service   *service.Service

	logger *logrus.Entry
}

// NewEngine is a factory method to produce an Engine instance.
func NewEngine(conf *config.Config) *Engine {
	return &Engine{
		Config: conf,
		logger: conf.Logger(),
	}
}

// Init initializes all the components. Configuration errors are returned here
// and are fatal.
func (e *Engine) Init() error {
	if err := e.initKey(); err != nil {
		return errors.Wrap(err, "initializing key")
	}

	if err := e.initPeers(); err != nil {
		return errors.Wrap(err, "initializing peers")
	}

	if err := e.initStore(); err != nil {
		return errors.Wrap(err, "initializing store")
	}

	if err := e.initChain(); err != nil {
		return errors.Wrap(err, "initializing chain")
	}

	if err := e.initTransport(); err != nil {
		return errors.Wrap(err, "initializing transport")
	}

	if err := e.initNode(); err != nil {
		return errors.Wrap(err, "initializing node")
	}

	e.initService()

	return nil
}

// Run starts the HTTP service in the background and follows the cycle until
// ctx is cancelled or the engine is shut down. It blocks.
func (e *Engine) Run(ctx context.Context) {
	if e.Service != nil {
		go e.Service.Serve()
	}

	e.Node.Run(ctx)
}

// Shutdown stops the node, which closes the transport and the store, and the
// HTTP service.
func (e *Engine) Shutdown() {
	if e.Service != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Service.Shutdown(ctx); err != nil {
			e.logger.WithError(err).Error("Stopping service")
		}
	}

	if e.Node != nil {
		e.Node.Shutdown()
	}
}

func (e *Engine) initKey() error {
	if e.Config.Key != nil {
		return nil
	}

	key, err := keys.NewSimpleKeyfile(e.Config.Keyfile()).ReadKey()
	if err != nil {
		return err
	}

	e.Config.Key = key

	return nil
}

func (e *Engine) initPeers() error {
	selfID := keys.PublicKeyHex(&e.Config.Key.PublicKey)

	peerSet, err := peers.NewJSONPeerSet(e.Config.DataDir).PeerSet()
	if err != nil {
		return err
	}

	if _, ok := peerSet.ByPubKey[selfID]; !ok {
		return fmt.Errorf("cannot find self pubkey %s in peers.json", selfID)
	}

	e.Peers = peers.NewSetProvider(peerSet, selfID)

	if err := delta.ValidateProducers(e.Peers.CurrentAuthorizedProducers()); err != nil {
		return err
	}

	e.logger.WithFields(logrus.Fields{
		"peers":     peerSet.Len(),
		"producers": len(e.Peers.CurrentAuthorizedProducers()),
	}).Debug("Loaded peers")

	return nil
}

func (e *Engine) initStore() error {
	alg, err := e.Config.Hash()
	if err != nil {
		return err
	}

	if !e.Config.Store {
		e.Store = dfs.NewInmemStore(alg)
		e.logger.Debug("created new in-mem store")
		return nil
	}

	e.logger.WithField("path", e.Config.DatabaseDir).Debug("Attempting to load or create database")

	store, err := dfs.NewBadgerStore(alg, e.Config.DatabaseDir, e.logger)
	if err != nil {
		return err
	}

	e.Store = store

	return nil
}

// initChain restores the tip persisted by a previous run, or starts from the
// genesis hash.
func (e *Engine) initChain() error {
	tip, err := e.Store.Tip()
	switch {
	case err == nil:
		e.logger.WithField("tip", common.EncodeToString(tip)).Info("Restored chain tip")
	case common.IsStore(err, common.Empty):
		tip, err = e.Config.GenesisHash()
		if err != nil {
			return err
		}
		e.logger.WithField("genesis", common.EncodeToString(tip)).Debug("Starting from genesis")
	default:
		return err
	}

	e.Chain = delta.NewChainTracker(tip)

	return nil
}

func (e *Engine) initTransport() error {
	transport, err := net.NewTCPTransport(
		e.Config.BindAddr,
		e.Config.AdvertiseAddr,
		e.Config.MaxPool,
		e.Config.TCPTimeout,
		e.Config.FetchTimeout,
		e.logger,
	)
	if err != nil {
		return err
	}

	e.Transport = transport

	return nil
}

func (e *Engine) initNode() error {
	e.Mempool = mempool.NewMempool(e.Config.MempoolSize)
	e.Registry = prometheus.NewRegistry()

	n, err := node.NewNode(
		e.Config,
		keys.NewECDSASigner(e.Config.Key),
		e.Peers,
		e.Mempool,
		e.Store,
		e.Chain,
		e.Transport,
		e.Registry,
	)
	if err != nil {
		return err
	}

	e.Node = n

	return nil
}

func (e *Engine) initService() {
	if !e.Config.NoService {
		e.Service = service.NewService(e.Config.ServiceAddr, e.Node, e.Registry, e.logger)
	}
}

// Keygen generates a new key pair and writes the private key to keyfile. It
// refuses to overwrite an existing key.
func Keygen(keyfile string) (*ecdsa.PrivateKey, error) {
	if _, err := os.Stat(keyfile); err == nil {
		return nil, fmt.Errorf("another key already lives under %s", keyfile)
	}

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}

	if err := keys.NewSimpleKeyfile(keyfile).WriteKey(key); err != nil {
		return nil, err
	}

	return key, nil
}
