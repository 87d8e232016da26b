package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
// Repository methods run against Tx when present, otherwise against their
// own connection pool.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}
