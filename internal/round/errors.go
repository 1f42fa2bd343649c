package round

import "errors"

// Error classes. Handlers map these to status codes: validation and preflight
// failures are the caller's problem (4xx), remote reads and submissions are
// ours or the chain's (5xx). Partial success is carried in the Result itself,
// not as a distinct error class.
var (
	// ErrRemoteRead marks a failed read against the contract. The state is
	// unknown, so the only safe reaction is to do nothing and let the next
	// trigger retry.
	ErrRemoteRead = errors.New("remote read failed")

	// ErrValidation marks a malformed request, rejected before any I/O.
	ErrValidation = errors.New("invalid request")

	// ErrPreflight marks an entry that would fail on-chain, caught before
	// spending gas.
	ErrPreflight = errors.New("preflight failed")

	// ErrSubmission marks a transaction that could not be broadcast or
	// confirmed. The on-chain state is unchanged from our perspective;
	// the next scheduled invocation retries.
	ErrSubmission = errors.New("submission failed")
)
