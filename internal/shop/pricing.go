package shop

import "github.com/shopspring/decimal"

type CartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type PricedLine struct {
	ProductID string
	Quantity  int
	Price     string // snapshot harga saat ini
}

// PriceCart menghitung total order secara decimal-exact dari harga di DB
// (hindari trust harga dari client, hindari float drift).
// Urutan cek per line: product ada -> qty valid -> stok cukup.
func PriceCart(products map[string]Product, lines []CartLine) (total string, priced []PricedLine, err error) {
	if len(lines) == 0 {
		return "", nil, ValidationField("items", "order must contain at least one item")
	}

	sum := decimal.Zero
	priced = make([]PricedLine, 0, len(lines))

	for _, ln := range lines {
		p, ok := products[ln.ProductID]
		if !ok {
			return "", nil, &Error{
				Kind: KindNotFound, ProductID: ln.ProductID,
				Msg: "product " + ln.ProductID + " not found",
			}
		}
		if ln.Quantity < 1 {
			return "", nil, ValidationField("quantity", "quantity must be at least 1")
		}
		if ln.Quantity > p.Stock {
			return "", nil, &Error{
				Kind: KindInsufficientStock, ProductID: p.ID,
				Msg: "insufficient stock for product " + p.Name,
			}
		}

		unit, perr := decimal.NewFromString(p.Price)
		if perr != nil {
			return "", nil, Wrap(KindValidation, "bad price for product "+p.ID, perr)
		}
		sum = sum.Add(unit.Mul(decimal.NewFromInt(int64(ln.Quantity))))
		priced = append(priced, PricedLine{ProductID: p.ID, Quantity: ln.Quantity, Price: p.Price})
	}

	return sum.StringFixed(2), priced, nil
}
