package checkout

import "tokokasir/backend/internal/domain"

// maxLineAmount is the hard per-line quantity ceiling, independent of stock.
const maxLineAmount = 999

// Cart holds the working set of line items for one cashier session. It is
// not safe for concurrent use; the owning Session serializes access.
type Cart struct {
	lines []domain.CartLine
}

func lineCap(stockCap int) int {
	if stockCap > maxLineAmount {
		return maxLineAmount
	}
	return stockCap
}

// AddLine inserts the product as a new line with amount 1, or increments an
// existing line by 1. It returns ErrStockInsufficient without mutating the
// cart when the increment would exceed the line's stock cap.
func (c *Cart) AddLine(product domain.Product) error {
	for i := range c.lines {
		if c.lines[i].SKU != product.SKU {
			continue
		}
		if c.lines[i].Amount+1 > lineCap(c.lines[i].StockCap) {
			return ErrStockInsufficient
		}
		c.lines[i].Amount++
		return nil
	}

	if lineCap(product.Stock) < 1 {
		return ErrStockInsufficient
	}
	c.lines = append(c.lines, domain.CartLine{
		SKU:       product.SKU,
		Name:      product.Name,
		UnitPrice: product.Price,
		Amount:    1,
		StockCap:  product.Stock,
	})
	return nil
}

// UpdateQuantity applies a signed delta to the line's amount. A positive
// delta that would exceed the stock cap fails with ErrStockInsufficient and
// leaves the line untouched; a resulting amount of zero or less removes the
// line.
func (c *Cart) UpdateQuantity(sku string, delta int) error {
	for i := range c.lines {
		if c.lines[i].SKU != sku {
			continue
		}
		newAmount := c.lines[i].Amount + delta
		if delta > 0 && newAmount > lineCap(c.lines[i].StockCap) {
			return ErrStockInsufficient
		}
		if newAmount <= 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return nil
		}
		c.lines[i].Amount = newAmount
		return nil
	}
	return ErrLineNotFound
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Lines returns a copy of the current line items in insertion order.
func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// SubTotal is the sum of unit price times amount over all lines.
func (c *Cart) SubTotal() int64 {
	var sum int64
	for _, line := range c.lines {
		sum += line.UnitPrice * int64(line.Amount)
	}
	return sum
}

// replaceLines swaps in a restored line set wholesale. Used by the session
// when reloading a saved transaction.
func (c *Cart) replaceLines(lines []domain.CartLine) {
	c.lines = make([]domain.CartLine, len(lines))
	copy(c.lines, lines)
}
