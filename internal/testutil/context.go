package testutil

import (
	"context"

	"github.com/medbill/ledger/internal/types"
)

// DefaultUserID is recorded as the actor on everything written by tests
const DefaultUserID = "usr_test"

func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetUserID(ctx, DefaultUserID)
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	return ctx
}
