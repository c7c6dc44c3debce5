package assetledger

import (
	"github.com/xraph/assetledger/account"
	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/saga"
	"github.com/xraph/assetledger/transfer"
	"github.com/xraph/assetledger/types"
)

// Re-export common types for convenience so users don't have to import the subpackages.

// Money is re-exported from types package.
type Money = types.Money

// Asset is re-exported from types package.
type Asset = types.Asset

// Entity is re-exported from types package.
type Entity = types.Entity

// Account is re-exported from account package.
type Account = account.Account

// TransferRecord is re-exported from transfer package.
type TransferRecord = transfer.Record

// Event is re-exported from event package.
type Event = event.Event

// Stream is re-exported from event package.
type Stream = event.Stream

// Workflow is re-exported from saga package.
type Workflow = saga.Workflow

// WorkflowStatus is re-exported from saga package.
type WorkflowStatus = saga.Status

// Re-export Money constructors
var (
	NewMoney     = types.NewMoney
	USD          = types.USD
	EUR          = types.EUR
	GBP          = types.GBP
	JPY          = types.JPY
	BTC          = types.BTC
	Zero         = types.Zero
	FromBalances = types.FromBalances
)

// Re-export stream constructors
var (
	AccountStream  = event.AccountStream
	BalanceStream  = event.BalanceStream
	TransferStream = event.TransferStream
)

// Re-export workflow statuses
const (
	StatusPending      = saga.StatusPending
	StatusRunning      = saga.StatusRunning
	StatusCompensating = saga.StatusCompensating
	StatusCompleted    = saga.StatusCompleted
	StatusFailed       = saga.StatusFailed
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
