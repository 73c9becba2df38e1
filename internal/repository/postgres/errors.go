package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/lib/pq"
)

// classify maps driver errors onto the domain error taxonomy so services
// can tell a bad row from a dead connection.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.Error{Kind: domain.KindNotFound, Op: op, Err: err}
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.FatalError(op, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505", pqErr.Code == "23503":
			return &domain.Error{Kind: domain.KindConflict, Op: op, Msg: pqErr.Message, Err: err}
		case pqErr.Code.Class() == "22", pqErr.Code == "23502":
			return &domain.Error{Kind: domain.KindValidation, Op: op, Msg: pqErr.Message, Err: err}
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "57", pqErr.Code.Class() == "53":
			return domain.FatalError(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.FatalError(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
