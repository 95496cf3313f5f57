package domain

import "time"

// LineOption is a price-bearing snapshot of a product size or addon,
// copied from the catalog at placement time.
type LineOption struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// OrderLine is one line of an order. Name and prices are snapshots:
// catalog edits after placement never change them.
type OrderLine struct {
	Name    string       `json:"name"`
	Qty     int          `json:"qty"`
	Price   float64      `json:"price"` // base unit price, surcharges excluded
	Size    *LineOption  `json:"size,omitempty"`
	Addons  []LineOption `json:"addons,omitempty"`
	Details string       `json:"details,omitempty"`
}

// UnitPrice is the effective per-unit price including the size and
// addon surcharges.
func (l OrderLine) UnitPrice() float64 {
	p := l.Price
	if l.Size != nil {
		p += l.Size.Price
	}
	for _, a := range l.Addons {
		p += a.Price
	}
	return p
}

type Order struct {
	ID        string      `json:"id"`
	TableID   int         `json:"tableId"`
	Items     []OrderLine `json:"items"`
	Total     float64     `json:"total"`
	Status    Status      `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Clone returns a deep copy. The store hands out clones so callers and
// broadcast subscribers can never mutate the stored order.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = make([]OrderLine, len(o.Items))
	for i, l := range o.Items {
		cl := l
		if l.Size != nil {
			s := *l.Size
			cl.Size = &s
		}
		if l.Addons != nil {
			cl.Addons = append([]LineOption(nil), l.Addons...)
		}
		c.Items[i] = cl
	}
	return &c
}
