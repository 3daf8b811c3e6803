// Package account models a user's clearinghouse state and merges the
// REST-fetched baseline with partial push updates into one coherent view.
package account

import (
	"github.com/spf13/cast"
)

// ClearinghouseState mirrors the upstream clearinghouseState object, both
// as returned by the REST info endpoint and as pushed inside webData2.
type ClearinghouseState struct {
	MarginSummary              *MarginSummary  `json:"marginSummary,omitempty"`
	CrossMarginSummary         *MarginSummary  `json:"crossMarginSummary,omitempty"`
	CrossMaintenanceMarginUsed string          `json:"crossMaintenanceMarginUsed,omitempty"`
	Withdrawable               string          `json:"withdrawable,omitempty"`
	AssetPositions             []AssetPosition `json:"assetPositions,omitempty"`
	Time                       int64           `json:"time,omitempty"`
}

type MarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalMarginUsed string `json:"totalMarginUsed"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalRawUsd     string `json:"totalRawUsd"`
}

type AssetPosition struct {
	Type     string   `json:"type"`
	Position Position `json:"position"`
}

type Position struct {
	Coin           string      `json:"coin"`
	Szi            string      `json:"szi"`
	EntryPx        *string     `json:"entryPx"`
	PositionValue  string      `json:"positionValue"`
	UnrealizedPnl  string      `json:"unrealizedPnl"`
	ReturnOnEquity string      `json:"returnOnEquity"`
	LiquidationPx  *string     `json:"liquidationPx"`
	MarginUsed     string      `json:"marginUsed"`
	MaxLeverage    int         `json:"maxLeverage,omitempty"`
	Leverage       *Leverage   `json:"leverage,omitempty"`
	CumFunding     *CumFunding `json:"cumFunding,omitempty"`
}

type Leverage struct {
	Type   string  `json:"type"`
	Value  int     `json:"value"`
	RawUsd *string `json:"rawUsd,omitempty"`
}

type CumFunding struct {
	AllTime     string `json:"allTime"`
	SinceOpen   string `json:"sinceOpen"`
	SinceChange string `json:"sinceChange"`
}

// Size returns the signed position size as a float.
func (p Position) Size() float64 {
	return cast.ToFloat64(p.Szi)
}

// Snapshot is one account observation: a REST baseline or a (possibly
// partial) push update. Absent string fields are empty.
type Snapshot struct {
	User                       string
	AccountValue               string
	TotalMarginUsed            string
	TotalNtlPos                string
	TotalRawUsd                string
	Withdrawable               string
	CrossMaintenanceMarginUsed string
	Positions                  []Position
	Time                       int64
}

// Snapshot flattens the clearinghouse object, deduplicating positions so
// they stay unique per coin (last occurrence wins).
func (c ClearinghouseState) Snapshot(user string) Snapshot {
	s := Snapshot{
		User:                       user,
		Withdrawable:               c.Withdrawable,
		CrossMaintenanceMarginUsed: c.CrossMaintenanceMarginUsed,
		Time:                       c.Time,
	}
	if c.MarginSummary != nil {
		s.AccountValue = c.MarginSummary.AccountValue
		s.TotalMarginUsed = c.MarginSummary.TotalMarginUsed
		s.TotalNtlPos = c.MarginSummary.TotalNtlPos
		s.TotalRawUsd = c.MarginSummary.TotalRawUsd
	}

	seen := make(map[string]int, len(c.AssetPositions))
	for _, ap := range c.AssetPositions {
		if idx, ok := seen[ap.Position.Coin]; ok {
			s.Positions[idx] = ap.Position
			continue
		}
		seen[ap.Position.Coin] = len(s.Positions)
		s.Positions = append(s.Positions, ap.Position)
	}
	return s
}

// State is the fully resolved account view handed to subscribers. It is
// replaced, never mutated, so callers may compare by pointer to skip
// redundant renders.
type State struct {
	User                       string
	AccountValue               string
	TotalMarginUsed            string
	TotalNtlPos                string
	TotalRawUsd                string
	Withdrawable               string
	CrossMaintenanceMarginUsed string
	Positions                  []Position
	Time                       int64
}

// Value returns the account value as a float.
func (s *State) Value() float64 {
	return cast.ToFloat64(s.AccountValue)
}

// Position returns the position for coin, if any.
func (s *State) Position(coin string) (Position, bool) {
	for _, p := range s.Positions {
		if p.Coin == coin {
			return p, true
		}
	}
	return Position{}, false
}
