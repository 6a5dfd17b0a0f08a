package domain

// Position is a user's holding in one outcome of one market.
type Position struct {
	MarketID      string       `json:"market_id"`
	MarketTitle   string       `json:"market_title"`
	OutcomeID     string       `json:"outcome_id"`
	Shares        Wei          `json:"shares"`
	TotalInvested Wei          `json:"total_invested"`
	AveragePrice  Wei          `json:"average_price"`
	MarketStatus  MarketStatus `json:"market_status"`
}
