package domain

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// Product is the catalog metadata for a product.
type Product struct {
	ID    int64           `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image"`
}

// Stock is the available quantity reported by the inventory.
type Stock struct {
	ID     int64 `json:"id"`
	Amount int   `json:"amount"`
}

// CartLine is one product's entry in the cart. Title, Price and Image are
// copied from the catalog when the line is created and never refreshed.
type CartLine struct {
	ProductID int64           `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Amount    int             `json:"amount"`
}

// NewLine creates a cart line for product with the given amount.
func NewLine(p Product, amount int) CartLine {
	return CartLine{
		ProductID: p.ID,
		Title:     p.Title,
		Price:     p.Price,
		Image:     p.Image,
		Amount:    amount,
	}
}

// Subtotal returns the line price multiplied by its amount.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Amount)))
}

// Equal reports whether two lines carry the same values. Prices are compared
// numerically so 10 and 10.00 are equal.
func (l CartLine) Equal(o CartLine) bool {
	return l.ProductID == o.ProductID &&
		l.Amount == o.Amount &&
		l.Title == o.Title &&
		l.Image == o.Image &&
		l.Price.Equal(o.Price)
}

// Cart is an ordered list of lines with at most one line per product.
// Order is presentation order only.
//
// A Cart value is never modified in place: every mutating method returns a
// new Cart backed by a new slice, leaving the receiver untouched.
type Cart []CartLine

// Find returns the line for productID and its index.
func (c Cart) Find(productID int64) (CartLine, int, bool) {
	for i, l := range c {
		if l.ProductID == productID {
			return l, i, true
		}
	}
	return CartLine{}, -1, false
}

// Contains reports whether the cart has a line for productID.
func (c Cart) Contains(productID int64) bool {
	_, _, ok := c.Find(productID)
	return ok
}

// Clone returns a copy of the cart that shares nothing with c.
func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	return slices.Clone(c)
}

// WithLine returns a new cart with line appended.
func (c Cart) WithLine(line CartLine) Cart {
	next := make(Cart, 0, len(c)+1)
	next = append(next, c...)
	return append(next, line)
}

// WithAmount returns a new cart in which the line for productID has the
// given amount. The cart is returned unchanged (as a copy) if no such line
// exists.
func (c Cart) WithAmount(productID int64, amount int) Cart {
	next := c.Clone()
	if _, i, ok := c.Find(productID); ok {
		line := c[i]
		line.Amount = amount
		next[i] = line
	}
	return next
}

// Without returns a new cart excluding the line for productID.
func (c Cart) Without(productID int64) Cart {
	next := make(Cart, 0, len(c))
	for _, l := range c {
		if l.ProductID != productID {
			next = append(next, l)
		}
	}
	return next
}

// Equal compares two carts by value, line by line and in order.
func (c Cart) Equal(o Cart) bool {
	return slices.EqualFunc(c, o, CartLine.Equal)
}

// ItemCount returns the sum of all line amounts.
func (c Cart) ItemCount() int {
	var n int
	for _, l := range c {
		n += l.Amount
	}
	return n
}

// Total returns the sum of all line subtotals.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Amounts maps each product in the cart to its amount.
func (c Cart) Amounts() map[int64]int {
	m := make(map[int64]int, len(c))
	for _, l := range c {
		m[l.ProductID] = l.Amount
	}
	return m
}

// Validate checks the cart invariants: every amount is at least one and no
// product appears twice.
func (c Cart) Validate() error {
	seen := make(map[int64]struct{}, len(c))
	for _, l := range c {
		if l.Amount < 1 {
			return &InvariantError{ProductID: l.ProductID, Reason: "amount must be at least 1"}
		}
		if _, dup := seen[l.ProductID]; dup {
			return &InvariantError{ProductID: l.ProductID, Reason: "duplicate line"}
		}
		seen[l.ProductID] = struct{}{}
	}
	return nil
}

// InvariantError reports a cart that breaks a line invariant.
type InvariantError struct {
	ProductID int64
	Reason    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("cart line %d: %s", e.ProductID, e.Reason)
}
