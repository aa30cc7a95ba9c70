// Package repository is the MySQL store adapter.  It is the only writer
// of persisted state.  Every transport failure leaves this package
// wrapped as apperror.ErrStoreRead or apperror.ErrStoreWrite; absent
// rows surface as apperror.ErrNotFound.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/study-room-booking/internal/apperror"
)

// ErrSequenceConsumed is yielded when a query sequence is ranged over a
// second time.
var ErrSequenceConsumed = errors.New("query sequence already consumed")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// readErr maps a single-row read failure.  sql.ErrNoRows becomes a
// not-found error carrying msg.
func readErr(op, msg string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound(msg)
	}
	return apperror.StoreRead(op, err)
}
