package coordinator

import "fmt"

// Error is a coordinator-specific failure. Its value is the custom error code
// reported to clients.
type Error uint32

const (
	ErrInvalidInstruction Error = iota
	ErrNotRentExempt
	ErrInsufficientBalance
	ErrInvalidSubscriptionOwner
	ErrInvalidRequestStatus
	ErrInvalidOracleSigner
	ErrInvalidVrfProof
	ErrRequestAlreadyFulfilled
	ErrInsufficientConfirmations
	ErrInvalidRequestConfirmations
	ErrInvalidCallbackGasLimit
	ErrInvalidNumberOfWords
	ErrInvalidOracle
	ErrInvalidCommitment
	ErrCallbackFailed
	ErrRequestExpired
	ErrInvalidRequestParameters
)

var errorMessages = [...]string{
	ErrInvalidInstruction:          "invalid instruction",
	ErrNotRentExempt:               "not rent exempt",
	ErrInsufficientBalance:         "insufficient balance",
	ErrInvalidSubscriptionOwner:    "invalid subscription owner",
	ErrInvalidRequestStatus:        "invalid request status",
	ErrInvalidOracleSigner:         "invalid oracle signer",
	ErrInvalidVrfProof:             "invalid VRF proof",
	ErrRequestAlreadyFulfilled:     "request already fulfilled",
	ErrInsufficientConfirmations:   "insufficient confirmations",
	ErrInvalidRequestConfirmations: "invalid request confirmations",
	ErrInvalidCallbackGasLimit:     "invalid callback gas limit",
	ErrInvalidNumberOfWords:        "invalid number of words",
	ErrInvalidOracle:               "invalid oracle",
	ErrInvalidCommitment:           "invalid commitment",
	ErrCallbackFailed:              "callback failed",
	ErrRequestExpired:              "request expired",
	ErrInvalidRequestParameters:    "invalid request parameters",
}

func (e Error) Error() string {
	if int(e) < len(errorMessages) {
		return fmt.Sprintf("vrf coordinator: %s (code %d)", errorMessages[e], uint32(e))
	}
	return fmt.Sprintf("vrf coordinator: unknown error (code %d)", uint32(e))
}

// Code returns the custom error code.
func (e Error) Code() uint32 { return uint32(e) }
