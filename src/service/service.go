package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/catalyst-network/Catalyst-sub014/src/delta"
	"github.com/catalyst-network/Catalyst-sub014/src/mempool"
	"github.com/catalyst-network/Catalyst-sub014/src/peers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Node is the part of a node exposed by the API.
type Node interface {
	GetStats() map[string]string
	GetPeers() []*peers.Peer
	Tip() []byte
	GetDelta(hash []byte) (*delta.Delta, error)
	SubmitTransaction(tx *delta.Transaction) (bool, error)
}

// Service ...
type Service struct {
	sync.Mutex

	bindAddress string
	node        Node
	router      *mux.Router
	server      *http.Server
	logger      *logrus.Entry
}

// NewService creates the HTTP API of a node. Metrics collected by gatherer
// are served on /metrics; gatherer may be nil.
func NewService(bindAddress string, n Node, gatherer prometheus.Gatherer, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		router:      mux.NewRouter(),
		logger:      logger,
	}

	service.registerHandlers(gatherer)

	service.server = &http.Server{
		Addr:    bindAddress,
		Handler: service.router,
	}

	return &service
}

func (s *Service) registerHandlers(gatherer prometheus.Gatherer) {
	s.logger.Debug("Registering API handlers")
	s.router.HandleFunc("/stats", s.makeHandler(s.GetStats)).Methods(http.MethodGet)
	s.router.HandleFunc("/tip", s.makeHandler(s.GetTip)).Methods(http.MethodGet)
	s.router.HandleFunc("/peers", s.makeHandler(s.GetPeers)).Methods(http.MethodGet)
	s.router.HandleFunc("/delta/{hash}", s.makeHandler(s.GetDelta)).Methods(http.MethodGet)
	s.router.HandleFunc("/tx", s.makeHandler(s.SubmitTransaction)).Methods(http.MethodPost)
	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the router of the API, for tests and for embedding in
// another server.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving API")

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
	}
}

// Shutdown stops the server started by Serve.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.node.GetStats())
}

// GetTip ...
func (s *Service) GetTip(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"tip": common.EncodeToString(s.node.Tip()),
	})
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.node.GetPeers())
}

// GetDelta returns a committed delta by hex encoded content hash.
func (s *Service) GetDelta(w http.ResponseWriter, r *http.Request) {
	param := mux.Vars(r)["hash"]

	hash, err := common.DecodeFromString(param)
	if err != nil {
		s.logger.WithError(err).Errorf("Parsing hash parameter %s", param)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := s.node.GetDelta(hash)
	if err != nil {
		status := http.StatusInternalServerError
		if common.IsStore(err, common.KeyNotFound) {
			status = http.StatusNotFound
		} else {
			s.logger.WithError(err).Errorf("Retrieving delta %s", param)
		}
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, body)
}

// SubmitTransaction adds a JSON encoded transaction to the mempool.
func (s *Service) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var tx delta.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	added, err := s.node.SubmitTransaction(&tx)
	if err != nil {
		status := http.StatusInternalServerError
		if err == mempool.ErrFull {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"accepted": added})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
