package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrMissingSignature       = errors.New("missing required signature")
	ErrInvalidSignature       = errors.New("invalid transaction signature")
	ErrTransactionExpired     = errors.New("transaction recent slot is too old or in the future")
	ErrAlreadyProcessed       = errors.New("transaction has already been processed")
	ErrUnknownProgram         = errors.New("program is not registered")
	ErrCallDepth              = errors.New("cross-program invocation exceeds maximum depth")
	ErrNotEnoughAccountKeys   = errors.New("insufficient account keys for instruction")
	ErrInvalidInstructionData = errors.New("invalid instruction data")
	ErrInvalidArgument        = errors.New("invalid program argument")
	ErrInsufficientFunds      = errors.New("insufficient funds for instruction")
	ErrAccountAlreadyInUse    = errors.New("account already in use")
	ErrArithmeticOverflow     = errors.New("arithmetic overflow")
	ErrInvalidAccountData     = errors.New("invalid account data for instruction")
	ErrIllegalOwner           = errors.New("provided owner is not allowed")
	ErrInvalidSeeds           = errors.New("provided seeds do not result in a valid address")

	ErrReadonlyModified      = errors.New("instruction modified a readonly account")
	ErrExternalDataModified  = errors.New("instruction modified data of an account it does not own")
	ErrExternalLamportSpend  = errors.New("instruction spent from an account it does not own")
	ErrOwnerModified         = errors.New("instruction modified the owner of an account")
	ErrExecutableModified    = errors.New("instruction modified an executable account")
	ErrUnbalancedInstruction = errors.New("sum of account balances before and after instruction do not match")
	ErrPrivilegeEscalation   = errors.New("cross-program invocation with unauthorized signer or writable account")
	ErrMissingAccount        = errors.New("cross-program invocation references an account the caller does not hold")
)

// InstructionError records which top-level instruction of a transaction
// failed.
type InstructionError struct {
	Index int
	Err   error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("error processing instruction %d: %v", e.Index, e.Err)
}

func (e *InstructionError) Unwrap() error { return e.Err }
