package domain

import (
	"fmt"
	"slices"
	"strings"
)

// MarketStatus represents the lifecycle state of a market as reported by the
// prediction market contract.
type MarketStatus string

const (
	MarketStatusActive   MarketStatus = "active"
	MarketStatusResolved MarketStatus = "resolved"
)

// Categories accepted by the contract's create_market.
var Categories = []string{"sports", "politics", "entertainment", "economics", "crypto", "other"}

// DefaultCategory is used when a market is created without one.
const DefaultCategory = "other"

// ValidCategory reports whether the contract accepts c.
func ValidCategory(c string) bool {
	return slices.Contains(Categories, c)
}

// ParseMarketStatus accepts "active" or "resolved" in any case.
func ParseMarketStatus(s string) (MarketStatus, error) {
	switch st := MarketStatus(strings.ToLower(s)); st {
	case MarketStatusActive, MarketStatusResolved:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown market status %q", ErrInvalidInput, s)
}

// ValidateMarketFilter checks get_markets filters. Empty values match all.
func ValidateMarketFilter(category, status string) error {
	if category != "" && !ValidCategory(category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
	}
	if status != "" {
		if _, err := ParseMarketStatus(status); err != nil {
			return err
		}
	}
	return nil
}

// Outcome is one selectable result of a market.
type Outcome struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	TotalStakes Wei    `json:"total_stakes"`
	SharePrice  Wei    `json:"share_price"`
}

// Market mirrors the dictionary returned by get_market and get_markets.
// Fields absent from the list view (resolution_source, min_stake, ...) are
// left at their zero value.
type Market struct {
	ID                string       `json:"id"`
	Title             string       `json:"title"`
	Description       string       `json:"description"`
	Category          string       `json:"category"`
	Creator           string       `json:"creator"`
	CreationDate      string       `json:"creation_date"`
	ResolutionDate    string       `json:"resolution_date"`
	ResolutionSource  string       `json:"resolution_source,omitempty"`
	Status            MarketStatus `json:"status"`
	TotalVolume       Wei          `json:"total_volume"`
	ResolvedOutcomeID string       `json:"resolved_outcome_id,omitempty"`
	ResolutionData    string       `json:"resolution_data,omitempty"`
	MinStake          Wei          `json:"min_stake"`
	Outcomes          []Outcome    `json:"outcomes"`
}

// TrendingMarket is the condensed entry returned by get_trending_markets.
type TrendingMarket struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Category      string `json:"category"`
	TotalVolume   Wei    `json:"total_volume"`
	OutcomesCount int    `json:"outcomes_count"`
}

// MarketInput carries the named inputs of create_market. MinStakeEth is an
// ether-denominated decimal string; the contract converts it to wei.
type MarketInput struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Category         string   `json:"category"`
	ResolutionDate   string   `json:"resolution_date"`
	ResolutionSource string   `json:"resolution_source"`
	Outcomes         []string `json:"outcomes"`
	MinStakeEth      string   `json:"min_stake_eth"`
}
