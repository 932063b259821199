package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager provides a thin abstraction to execute a function within
// a database transaction, passing the underlying handle via `tx`.
//
// Use-case code stays free of driver types: repositories accept `qx any` and
// detect a tx handle implementation-side (tx-bound Exec/Query, SELECT ... FOR
// UPDATE where needed). Repositories MUST gracefully accept a nil handle and
// fall back to the non-transactional path.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
