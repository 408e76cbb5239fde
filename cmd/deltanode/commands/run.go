package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/catalyst-network/Catalyst-sub014/src/deltanode"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a delta node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runNode,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runNode(cmd *cobra.Command, args []string) error {
	engine := deltanode.NewEngine(&_config.Node)

	if err := engine.Init(); err != nil {
		_config.Node.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine.Run(ctx)

	engine.Shutdown()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.Node.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Node.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Also write logs to this file, in JSON")
	cmd.Flags().String("moniker", _config.Node.Moniker, "Optional name")

	// Network
	cmd.Flags().StringP("listen", "l", _config.Node.BindAddr, "Listen IP:Port for the node")
	cmd.Flags().StringP("advertise", "a", _config.Node.AdvertiseAddr, "Advertise IP:Port for the node")
	cmd.Flags().DurationP("timeout", "t", _config.Node.TCPTimeout, "TCP Timeout")
	cmd.Flags().Duration("fetch-timeout", _config.Node.FetchTimeout, "Timeout of delta fetches")
	cmd.Flags().Int("max-pool", _config.Node.MaxPool, "Connection pool size max")

	// Service
	cmd.Flags().Bool("no-service", _config.Node.NoService, "Disable the HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.Node.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Node.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.Node.DatabaseDir, "Dabatabase directory")

	// Consensus
	cmd.Flags().String("hash", _config.Node.HashAlgorithm, "Hash algorithm: sha256, sha3-256, keccak256, blake2b-256, blake3")
	cmd.Flags().String("genesis", _config.Node.Genesis, "Hex encoded hash anchoring the first round")
	cmd.Flags().String("favourite-rule", _config.Node.FavouriteRule, "rank or first-seen")
	cmd.Flags().Int("max-transactions", _config.Node.MaxTransactions, "Max number of transactions in a delta")
	cmd.Flags().Int("max-delta-bytes", _config.Node.MaxDeltaBytes, "Max size of the transactions of a delta")
	cmd.Flags().Int("mempool-size", _config.Node.MempoolSize, "Max number of pending transactions")
	cmd.Flags().Int("round-cache-size", _config.Node.RoundCacheSize, "Number of rounds kept in the vote caches")
	cmd.Flags().Duration("round-ttl", _config.Node.RoundTTL, "Expiry of the vote caches")

	// Cycle
	cmd.Flags().Duration("construction-producing", _config.Node.ConstructionProducing, "Duration of Construction/Producing")
	cmd.Flags().Duration("construction-collating", _config.Node.ConstructionCollating, "Duration of Construction/Collating")
	cmd.Flags().Duration("campaigning-producing", _config.Node.CampaigningProducing, "Duration of Campaigning/Producing")
	cmd.Flags().Duration("campaigning-collating", _config.Node.CampaigningCollating, "Duration of Campaigning/Collating")
	cmd.Flags().Duration("voting-producing", _config.Node.VotingProducing, "Duration of Voting/Producing")
	cmd.Flags().Duration("voting-collating", _config.Node.VotingCollating, "Duration of Voting/Collating")
	cmd.Flags().Bool("align-cycles", _config.Node.AlignCycles, "Start cycles on wall-clock multiples of the cycle duration")

	// Gossip
	cmd.Flags().Int("owner-fanout", _config.Node.OwnerFanout, "Peers targeted by the originator of a message")
	cmd.Flags().Int("relay-fanout", _config.Node.RelayFanout, "Minimum peers targeted by a relay")
	cmd.Flags().Int("min-network-size", _config.Node.MinNetworkSize, "Floor of the network size used to bound relays")
	cmd.Flags().Duration("gossip-ttl", _config.Node.GossipTTL, "Expiry of broadcast records")
	cmd.Flags().Int("max-gossip-records", _config.Node.MaxGossipRecords, "Max number of broadcast records")
	cmd.Flags().Int("send-concurrency", _config.Node.SendConcurrency, "Max concurrent sends of one broadcast")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Node.SetDataDir(_config.Node.DataDir)

	if _config.LogFile != "" {
		addFileHook(_config.Node.BaseLogger(), _config.LogFile)
	}

	logFields := logrus.Fields{
		"DataDir":       _config.Node.DataDir,
		"BindAddr":      _config.Node.BindAddr,
		"AdvertiseAddr": _config.Node.AdvertiseAddr,
		"ServiceAddr":   _config.Node.ServiceAddr,
		"NoService":     _config.Node.NoService,
		"MaxPool":       _config.Node.MaxPool,
		"Store":         _config.Node.Store,
		"LogLevel":      _config.Node.LogLevel,
		"Moniker":       _config.Node.Moniker,
		"TCPTimeout":    _config.Node.TCPTimeout,
		"HashAlgorithm": _config.Node.HashAlgorithm,
		"FavouriteRule": _config.Node.FavouriteRule,
		"CycleDuration": _config.Node.Timing().CycleDuration(),
		"AlignCycles":   _config.Node.AlignCycles,
		"OwnerFanout":   _config.Node.OwnerFanout,
		"RelayFanout":   _config.Node.RelayFanout,
	}

	if _config.Node.Store {
		logFields["DatabaseDir"] = _config.Node.DatabaseDir
	}

	_config.Node.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/deltanode.toml (.json, .yaml also work)
	viper.SetConfigName("deltanode")          // name of config file (without extension)
	viper.AddConfigPath(_config.Node.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Node.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Node.Logger().Debugf("No config file found in: %s", _config.Node.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}

// addFileHook copies every log entry from info level up to path.
func addFileHook(logger *logrus.Logger, path string) {
	pathMap := lfshook.PathMap{}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		logger.Infof("Failed to open %s, logging to stderr only", path)
		return
	}
	f.Close()

	for _, level := range []logrus.Level{
		logrus.InfoLevel,
		logrus.WarnLevel,
		logrus.ErrorLevel,
		logrus.FatalLevel,
		logrus.PanicLevel,
	} {
		pathMap[level] = path
	}

	logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.JSONFormatter{},
	))
}
