package types

import "time"

// Ticker is a top of book snapshot of one symbol on one exchange.
type Ticker struct {
	Symbol   string    `json:"symbol" yaml:"symbol"`
	Exchange string    `json:"exchange" yaml:"exchange"`
	Bid      float64   `json:"bid" yaml:"bid"`
	Ask      float64   `json:"ask" yaml:"ask"`
	Last     float64   `json:"last" yaml:"last"`
	Volume   float64   `json:"volume" yaml:"volume"`
	Time     time.Time `json:"time" yaml:"time"`
}

// Spread returns ask minus bid.
func (t Ticker) Spread() float64 {
	return t.Ask - t.Bid
}

// BookLevel is one price level of an order book.
type BookLevel struct {
	Price  float64 `json:"price" yaml:"price"`
	Amount float64 `json:"amount" yaml:"amount"`
}

// OrderBook holds the bid side sorted by price descending and the ask side
// sorted by price ascending.
type OrderBook struct {
	Symbol   string      `json:"symbol" yaml:"symbol"`
	Exchange string      `json:"exchange" yaml:"exchange"`
	Bids     []BookLevel `json:"bids" yaml:"bids"`
	Asks     []BookLevel `json:"asks" yaml:"asks"`
	Time     time.Time   `json:"time" yaml:"time"`
}

// BestBid returns the highest bid, or false for an empty bid side.
func (o OrderBook) BestBid() (BookLevel, bool) {
	if len(o.Bids) == 0 {
		return BookLevel{}, false
	}

	return o.Bids[0], true
}

// BestAsk returns the lowest ask, or false for an empty ask side.
func (o OrderBook) BestAsk() (BookLevel, bool) {
	if len(o.Asks) == 0 {
		return BookLevel{}, false
	}

	return o.Asks[0], true
}
