package sqlite

import (
	sqldriver "database/sql/driver"
	"fmt"
	"strings"

	driver "modernc.org/sqlite"

	"ledger/internal/storage/sqlbuild"
)

// Registered functions reach every connection opened after init, including
// the migration connection.
func init() {
	driver.MustRegisterDeterministicScalarFunction(sqlbuild.SQLiteLower, 1, unicodeLower)
}

// unicodeLower folds text the way strings.ToLower does, so description
// search agrees with the in-memory store on non-ASCII input.
func unicodeLower(_ *driver.FunctionContext, args []sqldriver.Value) (sqldriver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return nil, fmt.Errorf("%s: unsupported argument type %T", sqlbuild.SQLiteLower, v)
	}
}
