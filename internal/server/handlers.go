package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/freakyfriday/relayer/internal/round"
)

type statusResponse struct {
	RoundActive      bool     `json:"roundActive"`
	CurrentRound     uint64   `json:"currentRound"`
	RoundStart       uint64   `json:"roundStart"`
	Duration         uint64   `json:"duration"`
	EntryAmount      string   `json:"entryAmount"`
	RoundMode        string   `json:"roundMode"`
	MaxPlayers       uint64   `json:"maxPlayers"`
	ParticipantCount int      `json:"participantCount"`
	Participants     []string `json:"participants"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.chain.FetchSnapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	participants := make([]string, len(snap.Participants))
	for i, p := range snap.Participants {
		participants[i] = p.Hex()
	}

	writeJSON(w, http.StatusOK, statusResponse{
		RoundActive:      snap.Active,
		CurrentRound:     snap.CurrentRound,
		RoundStart:       snap.RoundStart,
		Duration:         snap.Duration,
		EntryAmount:      snap.EntryAmount.String(),
		RoundMode:        snap.Mode.String(),
		MaxPlayers:       snap.MaxPlayers,
		ParticipantCount: len(snap.Participants),
		Participants:     participants,
	})
}

func (s *Server) handleRelayEntry(w http.ResponseWriter, r *http.Request) {
	var body struct {
		User string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	writeResult(w, s.coord.RelayEntry(r.Context(), body.User))
}

func (s *Server) handleCheckExpired(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.coord.MaybeCloseRound(r.Context()))
}

func (s *Server) handleBatchRefund(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Round    json.RawMessage `json:"round"`
		Users    []string        `json:"users"`
		MaxCount uint64          `json:"maxCount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	roundNo, err := parseRound(body.Round)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("round is required"))
		return
	}

	writeResult(w, s.coord.BatchRefund(r.Context(), roundNo, body.Users, body.MaxCount))
}

func (s *Server) handleDebugState(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if !common.IsHexAddress(user) {
		writeError(w, http.StatusBadRequest, errors.New("invalid user address"))
		return
	}

	state, err := s.chain.DebugState(r.Context(), common.HexToAddress(user))
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.chain.Health(r.Context())
	status := http.StatusOK
	if !h.OK {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, h)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Endpoint not found"})
}

// parseRound accepts the round number as either a JSON number or a quoted
// string, which is what clients have historically sent.
func parseRound(raw json.RawMessage) (uint64, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, errors.New("round is required")
	}
	return strconv.ParseUint(s, 10, 64)
}

// writeResult maps a coordinator result to a status code: caller mistakes
// (validation, preflight) are 4xx, chain trouble is 5xx, and a partial
// success is still a 200 with the error field populated so the caller knows
// the entry itself confirmed.
func writeResult(w http.ResponseWriter, res *round.Result) {
	status := http.StatusOK
	if res.Err != nil && res.Action != round.ActionEntryRelayed {
		switch {
		case errors.Is(res.Err, round.ErrValidation), errors.Is(res.Err, round.ErrPreflight):
			status = http.StatusBadRequest
		default:
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, res)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
