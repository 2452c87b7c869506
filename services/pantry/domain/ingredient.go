package domain

import (
	"fmt"
	"strings"
	"time"

	"larder/pkg/apperr"
)

// ExpiringSoonWindow is how far ahead an expiry date counts as "soon".
const ExpiringSoonWindow = 3 * 24 * time.Hour

// StockStatus classifies an ingredient's quantity against its threshold.
type StockStatus string

const (
	StockInStock    StockStatus = "IN_STOCK"
	StockLow        StockStatus = "LOW_STOCK"
	StockOutOfStock StockStatus = "OUT_OF_STOCK"
)

func ParseStockStatus(raw string) (StockStatus, error) {
	switch s := StockStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StockInStock, StockLow, StockOutOfStock:
		return s, nil
	default:
		return "", apperr.Validation("stockStatus", apperr.RuleInvalidValue, fmt.Sprintf("unknown stock status %q", raw))
	}
}

// ExpiryStatus classifies an ingredient's expiry date relative to today.
type ExpiryStatus string

const (
	ExpiryNone         ExpiryStatus = "NO_EXPIRY"
	ExpiryFresh        ExpiryStatus = "FRESH"
	ExpiryExpiringSoon ExpiryStatus = "EXPIRING_SOON"
	ExpiryExpired      ExpiryStatus = "EXPIRED"
)

func ParseExpiryStatus(raw string) (ExpiryStatus, error) {
	switch s := ExpiryStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case ExpiryNone, ExpiryFresh, ExpiryExpiringSoon, ExpiryExpired:
		return s, nil
	default:
		return "", apperr.Validation("expiryStatus", apperr.RuleInvalidValue, fmt.Sprintf("unknown expiry status %q", raw))
	}
}

// Ingredient is a stocked item owned by a user.
type Ingredient struct {
	ID         IngredientID
	UserID     UserID
	Name       IngredientName
	CategoryID CategoryID
	UnitID     UnitID
	Quantity   Quantity
	Threshold  Quantity
	ExpiresOn  *time.Time
	Memo       Memo
	PhotoKey   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StockStatus derives the stock classification from quantity and threshold.
func (i *Ingredient) StockStatus() StockStatus {
	switch {
	case i.Quantity.IsZero():
		return StockOutOfStock
	case !i.Threshold.IsZero() && i.Quantity.Value() <= i.Threshold.Value():
		return StockLow
	default:
		return StockInStock
	}
}

// ExpiryStatus derives the expiry classification for the calendar day containing now.
func (i *Ingredient) ExpiryStatus(now time.Time) ExpiryStatus {
	if i.ExpiresOn == nil {
		return ExpiryNone
	}
	today := TruncateDay(now)
	expires := TruncateDay(*i.ExpiresOn)
	switch {
	case expires.Before(today):
		return ExpiryExpired
	case expires.Sub(today) <= ExpiringSoonWindow:
		return ExpiryExpiringSoon
	default:
		return ExpiryFresh
	}
}

// NeedsAttention reports whether the ingredient should be surfaced for restocking.
func (i *Ingredient) NeedsAttention(now time.Time) bool {
	return i.Urgency(now) > 0
}

// Urgency ranks how pressing an ingredient is; higher is more urgent, zero means fine.
func (i *Ingredient) Urgency(now time.Time) int {
	score := 0
	switch i.StockStatus() {
	case StockOutOfStock:
		score += 4
	case StockLow:
		score += 2
	}
	switch i.ExpiryStatus(now) {
	case ExpiryExpired:
		score += 3
	case ExpiryExpiringSoon:
		score += 1
	}
	return score
}

// TruncateDay drops the time of day, in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseExpiryDate parses an optional YYYY-MM-DD date.
func ParseExpiryDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, apperr.Validation("expiresOn", apperr.RuleInvalidFormat, "expiresOn must be formatted as YYYY-MM-DD")
	}
	return &t, nil
}
