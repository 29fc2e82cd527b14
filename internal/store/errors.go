package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"

	"github.com/dealerhq/dealer-be/internal/engine/domain"
)

// classifyError maps driver-level failures onto the engine error taxonomy so
// callers never see pq internals.
//
// Row-level security makes a denied UPDATE indistinguishable from "zero rows
// matched" unless the database raises insufficient_privilege outright; the
// zero-rows case is handled separately in the update paths.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "42501": // insufficient_privilege
			return fmt.Errorf("%w: %s", domain.ErrForbidden, pqErr.Message)
		case pqErr.Code.Class() == "08": // connection exceptions
			return fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, pqErr.Message)
		case pqErr.Code.Class() == "57": // operator intervention (shutdown etc.)
			return fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, pqErr.Message)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return err
}
