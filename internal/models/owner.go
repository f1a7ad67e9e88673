package models

import (
	"fmt"

	"github.com/solarscope/backend/internal/utils"
)

// validateOwner enforces the owner anchor: user and session are never both set.
// Neither set is accepted; such rows are unreachable by any owner query.
func validateOwner(userID *int64, sessionID *string) error {
	if userID != nil && sessionID != nil {
		return fmt.Errorf("%w: user_id and session_id are mutually exclusive", utils.ErrInvalidRecord)
	}
	return nil
}

// Ptr is a small helper for optional fields.
func Ptr[T any](v T) *T { return &v }
