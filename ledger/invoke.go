package ledger

import (
	"bytes"
	"context"
	"fmt"
	"math/bits"

	"github.com/Bren2010/kamui/pubkey"
	"go.uber.org/zap"
)

// MaxInvokeDepth is the deepest allowed instruction stack height. Top-level
// instructions run at depth 1.
const MaxInvokeDepth = 4

// Program is the interface implemented by everything that can be the target
// of an instruction.
type Program interface {
	Process(ctx *InvokeContext, accounts []*AccountInfo, data []byte) error
}

// ProgramFunc adapts a function to the Program interface.
type ProgramFunc func(ctx *InvokeContext, accounts []*AccountInfo, data []byte) error

func (f ProgramFunc) Process(ctx *InvokeContext, accounts []*AccountInfo, data []byte) error {
	return f(ctx, accounts, data)
}

// AccountInfo is a program's view of one account passed to an instruction.
// Entries with the same key share the underlying Account.
type AccountInfo struct {
	Key        pubkey.Pubkey
	IsSigner   bool
	IsWritable bool
	*Account
}

// txState is the working set of a transaction in flight. Nothing in it
// reaches the store unless every instruction succeeds.
type txState struct {
	ctx    context.Context
	ledger *Ledger
	slot   uint64
	logger *zap.Logger

	accounts map[pubkey.Pubkey]*Account
	original map[pubkey.Pubkey]*Account
	logs     []string

	// failed holds the first error of any invocation. A failed invocation
	// fails the whole transaction, even if its caller ignores the error.
	failed error
}

func (ts *txState) load(key pubkey.Pubkey) (*Account, error) {
	if acct, ok := ts.accounts[key]; ok {
		return acct, nil
	}
	acct, err := ts.ledger.loadAccount(ts.ledger.store, key)
	if err != nil {
		return nil, err
	}
	ts.accounts[key] = acct
	ts.original[key] = acct.clone()
	return acct, nil
}

func (ts *txState) log(format string, args ...interface{}) {
	ts.logs = append(ts.logs, fmt.Sprintf(format, args...))
}

func (ts *txState) invoke(ix *Instruction, depth int) error {
	if depth > MaxInvokeDepth {
		return ErrCallDepth
	} else if err := ts.ctx.Err(); err != nil {
		return err
	}
	program, ok := ts.ledger.program(ix.ProgramID)
	if !ok {
		return ErrUnknownProgram
	}

	ic := &InvokeContext{
		ProgramID: ix.ProgramID,

		tx:       ts,
		depth:    depth,
		signers:  make(map[pubkey.Pubkey]bool),
		writable: make(map[pubkey.Pubkey]bool),
		pre:      make(map[pubkey.Pubkey]*Account),
	}
	infos := make([]*AccountInfo, 0, len(ix.Accounts))
	for _, meta := range ix.Accounts {
		acct, err := ts.load(meta.Pubkey)
		if err != nil {
			return err
		}
		infos = append(infos, &AccountInfo{
			Key:        meta.Pubkey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			Account:    acct,
		})
		if meta.IsSigner {
			ic.signers[meta.Pubkey] = true
		}
		if meta.IsWritable {
			ic.writable[meta.Pubkey] = true
		}
		if _, ok := ic.pre[meta.Pubkey]; !ok {
			ic.pre[meta.Pubkey] = acct.clone()
		}
	}

	ts.log("Program %v invoke [%d]", ix.ProgramID, depth)
	err := program.Process(ic, infos, ix.Data)
	if err == nil {
		err = ts.failed
	}
	if err == nil {
		err = ic.verify()
	}
	if err != nil {
		ts.log("Program %v failed: %v", ix.ProgramID, err)
		return err
	}
	ts.log("Program %v success", ix.ProgramID)
	return nil
}

// InvokeContext carries the state of one program invocation.
type InvokeContext struct {
	ProgramID pubkey.Pubkey

	tx       *txState
	depth    int
	signers  map[pubkey.Pubkey]bool
	writable map[pubkey.Pubkey]bool
	pre      map[pubkey.Pubkey]*Account
}

func (ic *InvokeContext) Context() context.Context { return ic.tx.ctx }

// Slot returns the slot the transaction executes in.
func (ic *InvokeContext) Slot() uint64 { return ic.tx.slot }

// Depth returns the current instruction stack height.
func (ic *InvokeContext) Depth() int { return ic.depth }

func (ic *InvokeContext) Logger() *zap.Logger { return ic.tx.logger }

// Log appends a program log line to the transaction's logs.
func (ic *InvokeContext) Log(format string, args ...interface{}) {
	ic.tx.log("Program log: "+format, args...)
}

// Invoke performs a cross-program invocation. Every account the callee
// receives must be held by the caller, with at least the privileges
// requested. A signer privilege may also come from a program derived address
// of the caller, proven by passing its seeds. Any error fails the transaction,
// whether or not the caller returns it.
func (ic *InvokeContext) Invoke(ix Instruction, signerSeeds ...[][]byte) error {
	if ic.tx.failed != nil {
		return ic.tx.failed
	}
	err := ic.invoke(ix, signerSeeds)
	if err != nil {
		ic.tx.failed = err
	}
	return err
}

func (ic *InvokeContext) invoke(ix Instruction, signerSeeds [][][]byte) error {
	pdaSigners := make(map[pubkey.Pubkey]bool)
	for _, seeds := range signerSeeds {
		pda, err := pubkey.CreateProgramAddress(seeds, ic.ProgramID)
		if err != nil {
			return ErrInvalidArgument
		}
		pdaSigners[pda] = true
	}

	if !ic.holds(ix.ProgramID) {
		return ErrMissingAccount
	}
	for _, meta := range ix.Accounts {
		if !ic.holds(meta.Pubkey) {
			return ErrMissingAccount
		} else if meta.IsWritable && !ic.writable[meta.Pubkey] {
			return ErrPrivilegeEscalation
		} else if meta.IsSigner && !ic.signers[meta.Pubkey] && !pdaSigners[meta.Pubkey] {
			return ErrPrivilegeEscalation
		}
	}

	// The caller's own changes are checked before the callee runs, and the
	// callee's changes are folded into the caller's baseline afterwards.
	if err := ic.verify(); err != nil {
		return err
	}
	err := ic.tx.invoke(&ix, ic.depth+1)
	ic.refresh()
	return err
}

// holds reports whether the caller may pass `key` on. A program always holds
// its own address.
func (ic *InvokeContext) holds(key pubkey.Pubkey) bool {
	_, ok := ic.pre[key]
	return ok || key == ic.ProgramID
}

func (ic *InvokeContext) refresh() {
	for key := range ic.pre {
		ic.pre[key] = ic.tx.accounts[key].clone()
	}
}

// verify checks the changes made since the last baseline against the rules
// every program must follow.
func (ic *InvokeContext) verify() error {
	var beforeHi, beforeLo, afterHi, afterLo, carry uint64

	for key, pre := range ic.pre {
		post := ic.tx.accounts[key]

		beforeLo, carry = bits.Add64(beforeLo, pre.Lamports, 0)
		beforeHi += carry
		afterLo, carry = bits.Add64(afterLo, post.Lamports, 0)
		afterHi += carry

		if pre.equal(post) {
			continue
		} else if pre.Executable {
			return ErrExecutableModified
		} else if !ic.writable[key] {
			return ErrReadonlyModified
		}
		owned := pre.Owner == ic.ProgramID
		if pre.Owner != post.Owner && (!owned || !isZeroed(post.Data)) {
			return ErrOwnerModified
		} else if !bytes.Equal(pre.Data, post.Data) && !owned {
			return ErrExternalDataModified
		} else if post.Lamports < pre.Lamports && !owned {
			return ErrExternalLamportSpend
		}
	}

	if beforeHi != afterHi || beforeLo != afterLo {
		return ErrUnbalancedInstruction
	}
	ic.refresh()
	return nil
}
