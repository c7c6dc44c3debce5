// Package assetledger provides an event-sourced multi-asset ledger for Go
// applications.
//
// Assetledger is designed as a library, not a service. Import it directly into
// your Go application. It provides:
//
//   - Append-only event streams per account, balance and transfer
//   - Hash-chained balance events (SHA3-512) for tamper evidence
//   - Per-aggregate threshold monitoring, deterministic under replay
//   - Transfers, bulk transfers and batches run as durable sagas with
//     compensation on failure
//   - Optimistic concurrency with bounded retries
//   - Pluggable stores (memory, PostgreSQL, SQLite, MongoDB) and plugins
//     for audit, metrics and Kafka publishing
//
// # Quick Start
//
// Create a ledger instance with your preferred store:
//
//	import (
//	    "github.com/xraph/assetledger"
//	    "github.com/xraph/assetledger/store/memory"
//	)
//
//	l := assetledger.New(memory.New())
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Accounts and balances
//
// Accounts hold one balance per asset, in minor units:
//
//	acct, err := l.CreateAccount(ctx, "", "alice", nil)
//	balance, err := l.Credit(ctx, acct.ID, "USD", 10000)
//	balance, err = l.Debit(ctx, acct.ID, "USD", 3000)
//
// A debit that exceeds the balance fails with an *InsufficientFundsError and
// leaves an AccountLimitHit event on the stream. WithReference makes a
// credit or debit idempotent.
//
// # Transfers
//
// A transfer debits the source, credits the destination and records the
// transfer fact. If a step fails the completed steps are compensated:
//
//	res, err := l.Transfer(ctx, from, to, "USD", 5000, nil)
//	if errors.Is(err, assetledger.ErrAccountFrozen) {
//	    // res.Workflow.Status == assetledger.StatusFailed, balances unchanged
//	}
//
// BulkTransfer and BatchProcess compose transfers and other operations into
// one workflow with reverse-order compensation. Workflows are persisted
// after every step; Start compensates the ones left unfinished by a crash.
//
// # Integrity
//
// Every credit, debit and transfer event links to the previous one through
// hex(SHA3-512(prevHash || payload)). VerifyStream walks a stream and
// reports the first broken link.
//
// # TypeID
//
// Generated identifiers use TypeID:
//
//	acct_01h2xcejqtf2nbrexx3vqjhp41  // Account ID
//	xfer_01h2xcejqtf2nbrexx3vqjhp41  // Transfer ID
//	wf_01h455vb4pex5vsknk084sn02q    // Workflow ID
package assetledger
