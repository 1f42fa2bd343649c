package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/freakyfriday/relayer/internal/round"
)

type stubCoordinator struct {
	closeRes  *round.Result
	relayRes  *round.Result
	refundRes *round.Result

	relayUser   string
	refundRound uint64
	refundUsers []string
	refundMax   uint64
}

func (s *stubCoordinator) MaybeCloseRound(ctx context.Context) *round.Result {
	return s.closeRes
}

func (s *stubCoordinator) RelayEntry(ctx context.Context, user string) *round.Result {
	s.relayUser = user
	return s.relayRes
}

func (s *stubCoordinator) BatchRefund(ctx context.Context, roundNo uint64, users []string, maxCount uint64) *round.Result {
	s.refundRound = roundNo
	s.refundUsers = users
	s.refundMax = maxCount
	return s.refundRes
}

type stubChain struct {
	snap    *round.Snapshot
	snapErr error
	debug   *round.DebugState
	health  *round.Health
}

func (s *stubChain) FetchSnapshot(ctx context.Context) (*round.Snapshot, error) {
	return s.snap, s.snapErr
}

func (s *stubChain) DebugState(ctx context.Context, user common.Address) (*round.DebugState, error) {
	return s.debug, nil
}

func (s *stubChain) Health(ctx context.Context) *round.Health {
	return s.health
}

func serve(t *testing.T, coord Coordinator, chain ChainReader, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	handler := New(coord, chain, nil).Handler("http://localhost:3000")

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	chain := &stubChain{snap: &round.Snapshot{
		Active:       true,
		CurrentRound: 4,
		RoundStart:   1000,
		Duration:     500,
		EntryAmount:  big.NewInt(1000000),
		Mode:         round.ModeJackpot,
		MaxPlayers:   13,
		Participants: []common.Address{common.HexToAddress("0x2222222222222222222222222222222222222222")},
	}}

	rec := serve(t, &stubCoordinator{}, chain, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.RoundActive)
	require.Equal(t, uint64(4), resp.CurrentRound)
	require.Equal(t, "1000000", resp.EntryAmount)
	require.Equal(t, "Jackpot", resp.RoundMode)
	require.Equal(t, 1, resp.ParticipantCount)
}

func TestStatusEndpoint_ReadFailure(t *testing.T) {
	t.Parallel()

	chain := &stubChain{snapErr: errors.New("rpc down")}
	rec := serve(t, &stubCoordinator{}, chain, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRelayEntry_PreflightRejectionIs400(t *testing.T) {
	t.Parallel()

	coord := &stubCoordinator{relayRes: &round.Result{
		Action:   round.ActionRejected,
		Reason:   string(round.PreflightInsufficientBalance),
		ErrorMsg: "preflight failed",
		Err:      fmt.Errorf("%w: INSUFFICIENT_BALANCE", round.ErrPreflight),
	}}

	rec := serve(t, coord, &stubChain{}, http.MethodPost, "/relay-entry",
		`{"user":"0x2222222222222222222222222222222222222222"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "0x2222222222222222222222222222222222222222", coord.relayUser)

	var res round.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, string(round.PreflightInsufficientBalance), res.Reason)
}

func TestRelayEntry_SubmissionFailureIs502(t *testing.T) {
	t.Parallel()

	coord := &stubCoordinator{relayRes: &round.Result{
		Action: round.ActionRejected,
		Err:    fmt.Errorf("%w: broadcast failed", round.ErrSubmission),
	}}

	rec := serve(t, coord, &stubChain{}, http.MethodPost, "/relay-entry", `{"user":"0x22"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRelayEntry_PartialSuccessIs200(t *testing.T) {
	t.Parallel()

	coord := &stubCoordinator{relayRes: &round.Result{
		Action:   round.ActionEntryRelayed,
		Reason:   round.ReasonRefundFail,
		TxHash:   "0xentry",
		ErrorMsg: "refund failed",
		Err:      fmt.Errorf("%w: refund failed", round.ErrSubmission),
	}}

	rec := serve(t, coord, &stubChain{}, http.MethodPost, "/join", `{"user":"0x22"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res round.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, "0xentry", res.TxHash)
	require.NotEmpty(t, res.ErrorMsg)
}

func TestRelayEntry_BadJSON(t *testing.T) {
	t.Parallel()

	rec := serve(t, &stubCoordinator{}, &stubChain{}, http.MethodPost, "/relay-entry", "{nope")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckExpired(t *testing.T) {
	t.Parallel()

	coord := &stubCoordinator{closeRes: &round.Result{Action: round.ActionClosed, TxHash: "0xclose"}}
	rec := serve(t, coord, &stubChain{}, http.MethodPost, "/check-expired", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res round.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, round.ActionClosed, res.Action)
}

func TestBatchRefund_AcceptsNumberAndString(t *testing.T) {
	t.Parallel()

	for _, body := range []string{
		`{"round":3,"users":["0x2222222222222222222222222222222222222222"],"maxCount":5}`,
		`{"round":"3","users":["0x2222222222222222222222222222222222222222"],"maxCount":5}`,
	} {
		coord := &stubCoordinator{refundRes: &round.Result{Action: round.ActionRefunded}}
		rec := serve(t, coord, &stubChain{}, http.MethodPost, "/batch-refund", body)
		require.Equal(t, http.StatusOK, rec.Code, body)
		require.Equal(t, uint64(3), coord.refundRound)
		require.Equal(t, uint64(5), coord.refundMax)
	}
}

func TestBatchRefund_MissingRound(t *testing.T) {
	t.Parallel()

	rec := serve(t, &stubCoordinator{}, &stubChain{}, http.MethodPost, "/batch-refund",
		`{"users":["0x2222222222222222222222222222222222222222"]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDebugState_InvalidAddress(t *testing.T) {
	t.Parallel()

	rec := serve(t, &stubCoordinator{}, &stubChain{}, http.MethodGet, "/debug-state?user=nope", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDebugState(t *testing.T) {
	t.Parallel()

	chain := &stubChain{debug: &round.DebugState{Token: "0xToken", Decimals: 18, EntryHuman: "1"}}
	rec := serve(t, &stubCoordinator{}, chain, http.MethodGet,
		"/debug-state?user=0x2222222222222222222222222222222222222222", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var state round.DebugState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.Equal(t, uint8(18), state.Decimals)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	chain := &stubChain{health: &round.Health{OK: true, ChainID: "56", RoundActive: true}}
	rec := serve(t, &stubCoordinator{}, chain, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	chain.health = &round.Health{OK: false, Error: "rpc down"}
	rec = serve(t, &stubCoordinator{}, chain, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUnknownEndpointIs404JSON(t *testing.T) {
	t.Parallel()

	rec := serve(t, &stubCoordinator{}, &stubChain{}, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "Endpoint not found")
}
