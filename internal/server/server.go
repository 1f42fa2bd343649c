// Package server exposes the relayer's HTTP surface: round status, relayed
// entries, on-demand close checks, batch refunds, diagnostics, and a
// websocket feed of lifecycle events.
package server

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/cors"

	"github.com/freakyfriday/relayer/internal/round"
)

// Coordinator defines what the handlers need from the round coordinator.
type Coordinator interface {
	MaybeCloseRound(ctx context.Context) *round.Result
	RelayEntry(ctx context.Context, user string) *round.Result
	BatchRefund(ctx context.Context, roundNo uint64, users []string, maxCount uint64) *round.Result
}

// ChainReader defines the read-only chain access the handlers need.
type ChainReader interface {
	FetchSnapshot(ctx context.Context) (*round.Snapshot, error)
	DebugState(ctx context.Context, user common.Address) (*round.DebugState, error)
	Health(ctx context.Context) *round.Health
}

// Server wires the handlers to their collaborators.
type Server struct {
	coord Coordinator
	chain ChainReader
	hub   *Hub
}

func New(coord Coordinator, chain ChainReader, hub *Hub) *Server {
	return &Server{coord: coord, chain: chain, hub: hub}
}

// Handler builds the full middleware-wrapped handler. CORS is restricted to
// the configured front-end origin.
func (s *Server) Handler(frontendOrigin string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /relay-entry", s.handleRelayEntry)
	mux.HandleFunc("POST /join", s.handleRelayEntry)
	mux.HandleFunc("POST /check-expired", s.handleCheckExpired)
	mux.HandleFunc("POST /batch-refund", s.handleBatchRefund)
	mux.HandleFunc("GET /debug-state", s.handleDebugState)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.hub != nil {
		mux.HandleFunc("GET /ws", s.hub.HandleWS)
	}
	mux.HandleFunc("/", s.handleNotFound)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{frontendOrigin},
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
	})

	return requestLogger(c.Handler(mux))
}
