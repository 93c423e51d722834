package domain

// Kind classifies a failed cart operation.
type Kind string

const (
	KindOutOfStock      Kind = "out_of_stock"
	KindProductNotFound Kind = "product_not_found"
	KindAddFailed       Kind = "add_failed"
	KindUpdateFailed    Kind = "update_failed"
)

// Operation names a cart mutation.
type Operation string

const (
	OpAdd    Operation = "add"
	OpRemove Operation = "remove"
	OpUpdate Operation = "update"
)

// Notification is a user-visible message describing why a cart operation
// left the cart unchanged.
type Notification struct {
	Kind      Kind      `json:"kind"`
	Operation Operation `json:"operation"`
	ProductID int64     `json:"product_id"`
	Message   string    `json:"message"`
}

// Message returns the fixed user-facing text for kind during op.
func Message(op Operation, kind Kind) string {
	switch kind {
	case KindOutOfStock:
		return "Requested quantity is out of stock"
	case KindAddFailed:
		return "Failed to add product"
	case KindUpdateFailed:
		return "Failed to update product amount"
	case KindProductNotFound:
		if op == OpRemove {
			return "Failed to remove product"
		}
		return "Failed to update product amount"
	default:
		return "Cart operation failed"
	}
}
