// Package api exposes a read-mostly REST inspection surface over a
// Chain, plus a live block-push feed, adapted from the teacher's
// api_server.go/api_middleware.go (gorilla/mux + x/time/rate) and
// extended with a gorilla/websocket feed the teacher's go.mod carried
// but never imported.
package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sole-chain/sole-poa/internal/block"
	"github.com/sole-chain/sole-poa/internal/chain"
	"github.com/sole-chain/sole-poa/internal/crypto"
	"github.com/sole-chain/sole-poa/internal/poa"
	"github.com/sole-chain/sole-poa/internal/txn"
)

// Server is the HTTP surface over a Chain.
type Server struct {
	chain  *chain.Chain
	params poa.PoA
	feed   *feed
}

// New builds a Server over chain, ready to be handed to ListenAndServe.
func New(c *chain.Chain, params poa.PoA) *Server {
	return &Server{chain: c, params: params, feed: newFeed()}
}

// Broadcast pushes b to every connected live-feed client. Callers
// invoke this after a successful chain.Append/Forge.
func (s *Server) Broadcast(b *block.Block) {
	s.feed.broadcast(toJSONBlock(b))
}

// Router builds the full handler tree: CORS, then per-route rate
// limiting, matching the teacher's read/write limiter split.
func (s *Server) Router() http.Handler {
	readLimiter := newIPRateLimiter(20, 30)
	writeLimiter := newIPRateLimiter(5, 10)
	readMW := rateLimitMiddleware(readLimiter)
	writeMW := rateLimitMiddleware(writeLimiter)

	r := mux.NewRouter()
	r.Use(jsonMiddleware)

	r.Handle("/balance/{address}", readMW(http.HandlerFunc(s.getBalance))).Methods(http.MethodGet)
	r.Handle("/blocks/tip", readMW(http.HandlerFunc(s.getTip))).Methods(http.MethodGet)
	r.Handle("/blocks/{index:[0-9]+}", readMW(http.HandlerFunc(s.getBlock))).Methods(http.MethodGet)
	r.Handle("/consensus/validators", readMW(http.HandlerFunc(s.getValidators))).Methods(http.MethodGet)
	r.Handle("/tx/send", writeMW(http.HandlerFunc(s.sendTx))).Methods(http.MethodPost)
	r.HandleFunc("/ws/blocks", s.feed.serveWS)

	return corsMiddleware(r)
}

// ListenAndServe blocks serving Router() on addr.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return srv.ListenAndServe()
}

type errorResponse struct {
	Error string `json:"error"`
}

type balanceResponse struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

type tipResponse struct {
	Height uint64 `json:"height"`
	Hash   string `json:"hash"`
}

type validatorsResponse struct {
	Total      int      `json:"total"`
	Validators []string `json:"validators"`
}

type successResponse struct {
	Status string `json:"status"`
	TxID   string `json:"txid,omitempty"`
}

func addressPubKeyHash(address string) ([]byte, bool) {
	if !crypto.ValidateAddress([]byte(address)) {
		return nil, false
	}
	full, _ := crypto.Base58Decode([]byte(address))
	return full[1 : len(full)-4], true
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	pubKeyHash, ok := addressPubKeyHash(addr)
	if !ok {
		json.NewEncoder(w).Encode(errorResponse{Error: "invalid address"})
		return
	}
	balance := s.chain.Balance(pubKeyHash)
	json.NewEncoder(w).Encode(balanceResponse{Address: addr, Balance: balance})
}

func (s *Server) getTip(w http.ResponseWriter, r *http.Request) {
	tip := s.chain.Tip()
	json.NewEncoder(w).Encode(tipResponse{Height: s.chain.Height(), Hash: chain.HeaderHashHex(tip.Header)})
}

func (s *Server) getBlock(w http.ResponseWriter, r *http.Request) {
	var index uint64
	if _, err := fmt.Sscanf(mux.Vars(r)["index"], "%d", &index); err != nil {
		json.NewEncoder(w).Encode(errorResponse{Error: "invalid index"})
		return
	}
	b, err := s.chain.GetBlock(index)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errorResponse{Error: "block not found"})
		return
	}
	json.NewEncoder(w).Encode(toJSONBlock(b))
}

func (s *Server) getValidators(w http.ResponseWriter, r *http.Request) {
	addrs := make([]string, 0, len(s.params.ValidatorSet))
	for _, v := range s.params.ValidatorSet {
		addrs = append(addrs, v.Address)
	}
	json.NewEncoder(w).Encode(validatorsResponse{Total: len(addrs), Validators: addrs})
}

type sendTxRequest struct {
	Hex string `json:"hex"`
}

func (s *Server) sendTx(w http.ResponseWriter, r *http.Request) {
	var req sendTxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	raw, err := hex.DecodeString(req.Hex)
	if err != nil {
		json.NewEncoder(w).Encode(errorResponse{Error: "invalid hex"})
		return
	}

	tx, err := txn.FromBytes(raw)
	if err != nil {
		json.NewEncoder(w).Encode(errorResponse{Error: "invalid transaction encoding"})
		return
	}
	if err := tx.Validate(time.Now().Unix()); err != nil {
		json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
		return
	}

	json.NewEncoder(w).Encode(successResponse{Status: "valid", TxID: tx.Hash()})
}
