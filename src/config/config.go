package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/catalyst-network/Catalyst-sub014/src/crypto"
	"github.com/catalyst-network/Catalyst-sub014/src/cycle"
	"github.com/catalyst-network/Catalyst-sub014/src/delta"
	"github.com/catalyst-network/Catalyst-sub014/src/gossip"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"
)

// Default configuration values.
const (
	DefaultLogLevel              = "debug"
	DefaultBindAddr              = "127.0.0.1:1337"
	DefaultServiceAddr           = "127.0.0.1:8000"
	DefaultTCPTimeout            = 1000 * time.Millisecond
	DefaultFetchTimeout          = 5000 * time.Millisecond
	DefaultMaxPool               = 2
	DefaultStore                 = false
	DefaultHashAlgorithm         = crypto.Blake2b256
	DefaultFavouriteRule         = string(delta.RankRule)
	DefaultConstructionProducing = 2 * time.Second
	DefaultConstructionCollating = 2 * time.Second
	DefaultCampaigningProducing  = 2 * time.Second
	DefaultCampaigningCollating  = 2 * time.Second
	DefaultVotingProducing       = 2 * time.Second
	DefaultVotingCollating       = 2 * time.Second
	DefaultAlignCycles           = true
	DefaultMaxTransactions       = 1000
	DefaultMaxDeltaBytes         = 1 << 20
	DefaultMempoolSize           = 100000
	DefaultRoundCacheSize        = 100
	DefaultRoundTTL              = 5 * time.Minute
	DefaultOwnerFanout           = 10
	DefaultRelayFanout           = 3
	DefaultMinNetworkSize        = 10
	DefaultGossipTTL             = 10 * time.Minute
	DefaultMaxGossipRecords      = 100000
	DefaultSendConcurrency       = 10
)

// Config contains all the configuration properties of a delta node.
type Config struct {
	// DataDir is the top-level directory containing the node's configuration
	// and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// BindAddr is the local address:port where this node gossips with other
	// nodes.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// MaxPool controls how many connections are pooled per target.
	MaxPool int `mapstructure:"max-pool"`

	// TCPTimeout is the timeout of gossip connections.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// FetchTimeout is the timeout of requests for committed deltas.
	FetchTimeout time.Duration `mapstructure:"fetch-timeout"`

	// Store activates persistant storage of committed deltas.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// HashAlgorithm is the name of the hash function used for ranking,
	// candidate hashes and content addresses. All the nodes of a network must
	// use the same.
	HashAlgorithm string `mapstructure:"hash"`

	// Genesis is the hex encoded hash that anchors the first round. If empty,
	// it is derived from the hash algorithm.
	Genesis string `mapstructure:"genesis"`

	// FavouriteRule is "rank" or "first-seen".
	FavouriteRule string `mapstructure:"favourite-rule"`

	// Durations of the phases of a cycle
	ConstructionProducing time.Duration `mapstructure:"construction-producing"`
	ConstructionCollating time.Duration `mapstructure:"construction-collating"`
	CampaigningProducing  time.Duration `mapstructure:"campaigning-producing"`
	CampaigningCollating  time.Duration `mapstructure:"campaigning-collating"`
	VotingProducing       time.Duration `mapstructure:"voting-producing"`
	VotingCollating       time.Duration `mapstructure:"voting-collating"`

	// AlignCycles starts cycles on wall-clock multiples of the cycle duration.
	AlignCycles bool `mapstructure:"align-cycles"`

	// MaxTransactions and MaxDeltaBytes bound the content of a delta.
	MaxTransactions int `mapstructure:"max-transactions"`
	MaxDeltaBytes   int `mapstructure:"max-delta-bytes"`

	// MempoolSize is the max number of pending transactions.
	MempoolSize int `mapstructure:"mempool-size"`

	// RoundCacheSize and RoundTTL bound the per-round caches of favourites and
	// tallies.
	RoundCacheSize int           `mapstructure:"round-cache-size"`
	RoundTTL       time.Duration `mapstructure:"round-ttl"`

	// Gossip parameters
	OwnerFanout      int           `mapstructure:"owner-fanout"`
	RelayFanout      int           `mapstructure:"relay-fanout"`
	MinNetworkSize   int           `mapstructure:"min-network-size"`
	GossipTTL        time.Duration `mapstructure:"gossip-ttl"`
	MaxGossipRecords int           `mapstructure:"max-gossip-records"`
	SendConcurrency  int           `mapstructure:"send-concurrency"`

	// Key is the private key of the node.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:               DefaultDataDir(),
		LogLevel:              DefaultLogLevel,
		BindAddr:              DefaultBindAddr,
		ServiceAddr:           DefaultServiceAddr,
		MaxPool:               DefaultMaxPool,
		TCPTimeout:            DefaultTCPTimeout,
		FetchTimeout:          DefaultFetchTimeout,
		Store:                 DefaultStore,
		DatabaseDir:           DefaultDatabaseDir(),
		HashAlgorithm:         DefaultHashAlgorithm,
		FavouriteRule:         DefaultFavouriteRule,
		ConstructionProducing: DefaultConstructionProducing,
		ConstructionCollating: DefaultConstructionCollating,
		CampaigningProducing:  DefaultCampaigningProducing,
		CampaigningCollating:  DefaultCampaigningCollating,
		VotingProducing:       DefaultVotingProducing,
		VotingCollating:       DefaultVotingCollating,
		AlignCycles:           DefaultAlignCycles,
		MaxTransactions:       DefaultMaxTransactions,
		MaxDeltaBytes:         DefaultMaxDeltaBytes,
		MempoolSize:           DefaultMempoolSize,
		RoundCacheSize:        DefaultRoundCacheSize,
		RoundTTL:              DefaultRoundTTL,
		OwnerFanout:           DefaultOwnerFanout,
		RelayFanout:           DefaultRelayFanout,
		MinNetworkSize:        DefaultMinNetworkSize,
		GossipTTL:             DefaultGossipTTL,
		MaxGossipRecords:      DefaultMaxGossipRecords,
		SendConcurrency:       DefaultSendConcurrency,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests. Cycles are short and not aligned.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.ConstructionProducing = 50 * time.Millisecond
	config.ConstructionCollating = 100 * time.Millisecond
	config.CampaigningProducing = 50 * time.Millisecond
	config.CampaigningCollating = 100 * time.Millisecond
	config.VotingProducing = 50 * time.Millisecond
	config.VotingCollating = 50 * time.Millisecond
	config.AlignCycles = false
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the database directory
// if it is currently set to the default value. If the database directory is
// not currently the default, it means the user has explicitely set it to
// something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// Hash looks up the configured hash algorithm.
func (c *Config) Hash() (crypto.HashAlgorithm, error) {
	return crypto.LookupHashAlgorithm(c.HashAlgorithm)
}

// GenesisHash decodes the configured genesis hash, or derives one from the
// hash algorithm.
func (c *Config) GenesisHash() ([]byte, error) {
	alg, err := c.Hash()
	if err != nil {
		return nil, err
	}
	if c.Genesis == "" {
		return alg.Sum([]byte("genesis")), nil
	}
	genesis, err := common.DecodeFromString(c.Genesis)
	if err != nil {
		return nil, errors.Wrap(err, "decoding genesis hash")
	}
	if len(genesis) != alg.Size() {
		return nil, errors.Wrapf(delta.ErrMalformedHash, "genesis hash has %d bytes, %s produces %d", len(genesis), alg.Name, alg.Size())
	}
	return genesis, nil
}

// Timing returns the durations of the phases of a cycle.
func (c *Config) Timing() cycle.Timing {
	return cycle.Timing{
		Construction: cycle.PhaseTiming{Producing: c.ConstructionProducing, Collating: c.ConstructionCollating},
		Campaigning:  cycle.PhaseTiming{Producing: c.CampaigningProducing, Collating: c.CampaigningCollating},
		Voting:       cycle.PhaseTiming{Producing: c.VotingProducing, Collating: c.VotingCollating},
	}
}

// BuilderConfig ...
func (c *Config) BuilderConfig() delta.BuilderConfig {
	return delta.BuilderConfig{
		MaxTransactions: c.MaxTransactions,
		MaxBytes:        c.MaxDeltaBytes,
	}
}

// CacheConfig ...
func (c *Config) CacheConfig() delta.CacheConfig {
	return delta.CacheConfig{
		Rounds: c.RoundCacheSize,
		TTL:    c.RoundTTL,
	}
}

// GossipConfig ...
func (c *Config) GossipConfig() gossip.Config {
	return gossip.Config{
		OwnerFanout:     c.OwnerFanout,
		RelayFanout:     c.RelayFanout,
		MinNetworkSize:  c.MinNetworkSize,
		RecordTTL:       c.GossipTTL,
		MaxRecords:      c.MaxGossipRecords,
		SendConcurrency: c.SendConcurrency,
	}
}

// Logger returns a formatted logrus Entry, with prefix set to "deltanode".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "deltanode")
}

// BaseLogger returns the underlying logger, for hooks to be attached.
func (c *Config) BaseLogger() *logrus.Logger {
	c.Logger()
	return c.logger
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level config based
// on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".DeltaNode")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "DeltaNode")
		} else {
			return filepath.Join(home, ".deltanode")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
