package ledger

import (
	"github.com/yndnr/licmesh/internal/core/domain"
)

// Op names a transition.
type Op string

const (
	OpMint      Op = "mint"
	OpBatchMint Op = "batch_mint"
	OpOpenMint  Op = "open_mint"
	OpTransfer  Op = "transfer"
	OpBurn      Op = "burn"
	OpRevoke    Op = "revoke"
	OpRedeem    Op = "redeem"
)

// Command is a serializable transition request. Hosts funnel every write
// through Engine.Execute so that local and replicated hosts share one
// dispatch.
type Command struct {
	Op     Op             `json:"op"`
	Caller domain.Address `json:"caller"`

	// At is the transition time in Unix milliseconds. Replicated hosts stamp
	// it before replication so every replica applies the same time.
	At int64 `json:"at,omitempty"`

	Mint    *MintParams    `json:"mint,omitempty"`
	Batch   []MintParams   `json:"batch,omitempty"`
	Proof   []domain.Hash  `json:"proof,omitempty"`
	TokenID uint64         `json:"token_id,omitempty"`
	To      domain.Address `json:"to,omitempty"`
}

// Result is the outcome of Execute.
type Result struct {
	TokenID uint64         `json:"token_id,omitempty"`
	Batch   []BatchResult  `json:"batch,omitempty"`
	Events  []domain.Event `json:"events,omitempty"`
	Err     error          `json:"-"`
}

// Execute applies cmd and returns its result together with the events it
// emitted. A failed command emits nothing.
func (e *Engine) Execute(cmd Command) Result {
	at := cmd.At
	if at == 0 {
		at = e.nowMs()
	}

	e.pending = nil
	e.beginUndo()
	var res Result
	switch cmd.Op {
	case OpMint:
		if cmd.Mint == nil {
			res.Err = domain.ErrMissingArgument.WithDetails("mint params")
			break
		}
		res.TokenID, res.Err = e.mint(cmd.Caller, *cmd.Mint, at)
	case OpBatchMint:
		res.Batch, res.Err = e.batchMint(cmd.Caller, cmd.Batch, at)
	case OpOpenMint:
		if cmd.Mint == nil {
			res.Err = domain.ErrMissingArgument.WithDetails("mint params")
			break
		}
		res.TokenID, res.Err = e.openMint(cmd.Caller, *cmd.Mint, cmd.Proof, at)
	case OpTransfer:
		res.TokenID = cmd.TokenID
		res.Err = e.transfer(cmd.Caller, cmd.To, cmd.TokenID, at)
	case OpBurn:
		res.TokenID = cmd.TokenID
		res.Err = e.burn(cmd.Caller, cmd.TokenID, at)
	case OpRevoke:
		res.TokenID = cmd.TokenID
		res.Err = e.revoke(cmd.Caller, cmd.TokenID, at)
	case OpRedeem:
		res.TokenID = cmd.TokenID
		res.Err = e.redeem(cmd.Caller, cmd.TokenID, at)
	default:
		res.Err = domain.ErrInvalidArgument.WithDetailsf("unknown op %q", cmd.Op)
	}
	res.Events = e.TakeEvents()
	return res
}

// BatchColumns is the column-oriented batch request: one slice per
// attribute. Owners and ApplicationIDs are required; optional columns are
// either empty or exactly as long as Owners.
type BatchColumns struct {
	Owners         []domain.Address `json:"owners"`
	ApplicationIDs []string         `json:"application_ids"`
	MetadataRefs   []string         `json:"metadata_refs,omitempty"`
	ExpiresAt      []int64          `json:"expires_at,omitempty"`
	Soulbound      []bool           `json:"soulbound,omitempty"`
	Ephemeral      []bool           `json:"ephemeral,omitempty"`
}

// Rows zips the columns into entries. It fails with ErrArityMismatch when
// any column length disagrees.
func (c BatchColumns) Rows() ([]MintParams, error) {
	n := len(c.Owners)
	if len(c.ApplicationIDs) != n {
		return nil, domain.ErrArityMismatch.WithDetailsf("owners=%d application_ids=%d", n, len(c.ApplicationIDs))
	}
	optional := map[string]int{
		"metadata_refs": len(c.MetadataRefs),
		"expires_at":    len(c.ExpiresAt),
		"soulbound":     len(c.Soulbound),
		"ephemeral":     len(c.Ephemeral),
	}
	for name, l := range optional {
		if l != 0 && l != n {
			return nil, domain.ErrArityMismatch.WithDetailsf("owners=%d %s=%d", n, name, l)
		}
	}

	rows := make([]MintParams, n)
	for i := range rows {
		rows[i] = MintParams{Owner: c.Owners[i], ApplicationID: c.ApplicationIDs[i]}
		if len(c.MetadataRefs) > 0 {
			rows[i].MetadataRef = c.MetadataRefs[i]
		}
		if len(c.ExpiresAt) > 0 {
			rows[i].ExpiresAt = c.ExpiresAt[i]
		}
		if len(c.Soulbound) > 0 {
			rows[i].Soulbound = c.Soulbound[i]
		}
		if len(c.Ephemeral) > 0 {
			rows[i].Ephemeral = c.Ephemeral[i]
		}
	}
	return rows, nil
}
