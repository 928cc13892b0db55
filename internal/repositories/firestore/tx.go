package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
)

type txContextKey struct{}

func withTx(ctx context.Context, tx *firestore.Transaction) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// txFromContext returns the active transaction started by the registry's
// RunInTx, if any. Repositories use it so writes issued inside a unit of work
// join the same transaction.
func txFromContext(ctx context.Context) (*firestore.Transaction, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*firestore.Transaction)
	return tx, ok
}
