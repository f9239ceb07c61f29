package processors

import (
	"context"
	"errors"
	"fmt"

	container "github.com/js-lib-com/tiny-container-sub006"
	"go.uber.org/zap"
)

// Tx is one unit of work started by a TxManager.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxManager starts transactions. The value of the operation's TagTransactional tag is
// available through op for managers that support options such as read-only work.
type TxManager interface {
	Begin(ctx context.Context, op *container.Operation) (Tx, error)
}

type txContextKey struct{}

// TxFrom returns the transaction the current invocation runs in, or nil.
func TxFrom(ctx context.Context) Tx {
	tx, _ := ctx.Value(txContextKey{}).(Tx)
	return tx
}

// Transaction runs the rest of the chain inside a transaction: commit when it succeeds,
// roll back when it returns an error or panics.
type Transaction struct {
	manager TxManager
	logger  *zap.Logger
}

// NewTransaction creates a transaction processor.
func NewTransaction(manager TxManager, logger *zap.Logger) *Transaction {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transaction{manager: manager, logger: logger}
}

func (t *Transaction) Priority() container.Priority {
	return container.PriorityTransaction
}

func (t *Transaction) Bind(op *container.Operation) bool {
	return op.HasTag(TagTransactional)
}

func (t *Transaction) Invoke(chain *container.Chain, inv *container.Invocation) (result any, err error) {
	ctx := inv.Context
	tx, err := t.manager.Begin(ctx, inv.Operation)
	if err != nil {
		return nil, fmt.Errorf("begin transaction for %s: %w", inv.Operation.FullName(), err)
	}
	inv.Context = context.WithValue(ctx, txContextKey{}, tx)

	committed := false
	defer func() {
		inv.Context = ctx
		if committed {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			t.logger.Error("rollback failed",
				zap.String("operation", inv.Operation.FullName()),
				zap.Error(rbErr))
			if err != nil {
				err = errors.Join(err, rbErr)
			}
		}
	}()

	result, err = chain.Proceed(inv)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		committed = true
		return nil, fmt.Errorf("commit transaction for %s: %w", inv.Operation.FullName(), err)
	}
	committed = true
	return result, nil
}
