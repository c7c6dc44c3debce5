package assetledger_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/assetledger"
	"github.com/xraph/assetledger/snapshot"
	"github.com/xraph/assetledger/store/memory"
	"github.com/xraph/assetledger/types"
)

// TestDocumentationExamples verifies that the examples in the package documentation work.
func TestDocumentationExamples(t *testing.T) {
	// Quick Start example from the package doc
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		l := assetledger.New(store,
			assetledger.WithLogger(slog.Default()),
			assetledger.WithThresholdLimit(1000),
			assetledger.WithStepTimeout(5*time.Second),
			assetledger.WithSnapshots(snapshot.NewMemory(), 100),
		)

		ctx := context.Background()
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		alice, err := l.CreateAccount(ctx, "", "alice", nil)
		if err != nil {
			t.Fatal(err)
		}
		bob, err := l.CreateAccount(ctx, "", "bob", map[string]string{"tier": "gold"})
		if err != nil {
			t.Fatal(err)
		}

		if _, err := l.Credit(ctx, alice.ID, "USD", 10000); err != nil {
			t.Fatal(err)
		}
		balance, err := l.Debit(ctx, alice.ID, "USD", 3000)
		if err != nil {
			t.Fatal(err)
		}
		if balance != 7000 {
			t.Errorf("expected 7000 after debit, got %d", balance)
		}

		res, err := l.Transfer(ctx, alice.ID, bob.ID, "USD", 5000, nil)
		if err != nil {
			t.Fatal(err)
		}
		if res.Workflow.Status != assetledger.StatusCompleted {
			t.Errorf("expected completed transfer, got %s", res.Workflow.Status)
		}
		if res.Record == nil || res.Record.Amount != 5000 {
			t.Errorf("expected transfer record of 5000, got %+v", res.Record)
		}

		if _, err := l.VerifyStream(ctx, assetledger.BalanceStream(alice.ID)); err != nil {
			t.Errorf("verify stream: %v", err)
		}
	})

	t.Run("FrozenTransferExample", func(t *testing.T) {
		l := assetledger.New(memory.New())
		ctx := context.Background()

		from, _ := l.CreateAccount(ctx, "A", "alice", nil)
		to, _ := l.CreateAccount(ctx, "B", "bob", nil)
		l.Credit(ctx, from.ID, "USD", 100)
		l.FreezeAccount(ctx, to.ID, "kyc", "ops")

		res, err := l.Transfer(ctx, from.ID, to.ID, "USD", 50, nil)
		if !errors.Is(err, assetledger.ErrAccountFrozen) {
			t.Fatalf("expected ErrAccountFrozen, got %v", err)
		}
		if res.Workflow.Status != assetledger.StatusFailed {
			t.Errorf("expected failed workflow, got %s", res.Workflow.Status)
		}
	})

	// Money type examples
	t.Run("MoneyExamples", func(t *testing.T) {
		// Constructors
		_ = types.USD(4900)      // $49.00
		_ = types.BTC(150000000) // ₿1.50000000
		_ = types.Zero("usd")    // $0.00

		// Arithmetic
		m1 := types.USD(100)
		m2 := types.USD(200)
		_ = m1.Add(m2)      // $3.00
		_ = m2.Subtract(m1) // $1.00

		// Comparison
		if !m1.LessThan(m2) {
			t.Error("expected m1 < m2")
		}

		// Formatting
		if got := m1.String(); got != "$1.00" {
			t.Errorf("String: got %q", got)
		}
		if got := m1.FormatMajor(); got != "1.00" {
			t.Errorf("FormatMajor: got %q", got)
		}

		// Balances
		all := assetledger.FromBalances(map[string]int64{"USD": 7000, "BTC": 1})
		if len(all) != 2 || all[0].Asset != "BTC" {
			t.Errorf("FromBalances: got %v", all)
		}
	})
}
