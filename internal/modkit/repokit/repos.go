// Package repokit holds the aliases and binders repositories are built from
package repokit

import (
	"context"

	"flowkeeper/internal/platform/store"
)

// Queryer is the SQL surface repos bind to
type Queryer = store.RowQuerier

// TxRunner runs work inside a transaction
type TxRunner = store.TxRunner

type (
	// Rows is a result set
	Rows = store.Rows

	// Row is a single row
	Row = store.Row

	// CommandTag reports a write outcome
	CommandTag = store.CommandTag
)

// WithTx runs fn inside a transaction on tx
func WithTx(ctx context.Context, tx TxRunner, fn func(q Queryer) error) error {
	return tx.Tx(ctx, fn)
}
