package yahoo

import "time"

// PriceBar is one daily observation for a symbol. AdjClose falls back
// to Close when Yahoo returns no adjusted series.
type PriceBar struct {
	Date     time.Time `json:"date"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
}
