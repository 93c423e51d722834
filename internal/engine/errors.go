package engine

import (
	"errors"

	"github.com/utafrali/shopcart/internal/domain"
	apperrors "github.com/utafrali/shopcart/pkg/errors"
)

// ErrInventory wraps every failure returned by the inventory client.
var ErrInventory = errors.New("inventory lookup failed")

// Classify maps an operation error to the kind reported to the user.
// Inventory failures are checked first so a catalog 404 during add or update
// is reported as a failed operation rather than a missing cart line.
func Classify(op domain.Operation, err error) domain.Kind {
	switch {
	case errors.Is(err, ErrInventory):
		if op == domain.OpAdd {
			return domain.KindAddFailed
		}
		return domain.KindUpdateFailed
	case errors.Is(err, apperrors.ErrOutOfStock):
		return domain.KindOutOfStock
	case errors.Is(err, apperrors.ErrNotFound):
		return domain.KindProductNotFound
	}

	switch op {
	case domain.OpAdd:
		return domain.KindAddFailed
	case domain.OpUpdate:
		return domain.KindUpdateFailed
	default:
		return domain.KindProductNotFound
	}
}
