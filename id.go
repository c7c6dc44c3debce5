package assetledger

import "github.com/xraph/assetledger/id"

// ID is the primary identifier type for all ledger entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix

// Re-export ID constructors
var (
	NewAccountID  = id.NewAccountID
	NewTransferID = id.NewTransferID
	NewWorkflowID = id.NewWorkflowID
)
