package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context carries the caller's context and, when the write belongs to a larger
// unit, the open ledger transaction.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// Of wraps ctx without a transaction.
func Of(ctx context.Context) Context {
	return Context{Ctx: ctx}
}

// DB returns the transaction when one is set, otherwise base. Either way the
// handle is bound to Ctx.
func (c Context) DB(base *gorm.DB) *gorm.DB {
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if c.Tx != nil {
		return c.Tx.WithContext(ctx)
	}
	return base.WithContext(ctx)
}
