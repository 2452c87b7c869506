// Package domain holds the pantry entities, the shopping session state machine and
// the value objects that validate every identifier and bounded string.
package domain

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"larder/pkg/apperr"
)

const (
	MaxIdentifierLength     = 64
	MaxUserIDLength         = 128
	MaxCategoryNameLength   = 20
	MaxUnitNameLength       = 20
	MaxUnitSymbolLength     = 10
	MaxIngredientNameLength = 50
	MaxMemoLength           = 200
	MaxLocationLength       = 50

	MaxQuantity = 999999
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// boundedString trims raw and enforces presence and a maximum length in runes.
func boundedString(field, raw string, max int, required bool) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		if required {
			return "", apperr.Validation(field, apperr.RuleRequired, fmt.Sprintf("%s is required", field))
		}
		return "", nil
	}
	if utf8.RuneCountInString(value) > max {
		return "", apperr.Validation(field, apperr.RuleTooLong, fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return value, nil
}

func identifier(field, raw string) (string, error) {
	value, err := boundedString(field, raw, MaxIdentifierLength, true)
	if err != nil {
		return "", err
	}
	if !identifierPattern.MatchString(value) {
		return "", apperr.Validation(field, apperr.RuleInvalidFormat, fmt.Sprintf("%s contains invalid characters", field))
	}
	return value, nil
}

func newPrefixedID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// UserID identifies the owner supplied by the identity provider.
type UserID struct{ value string }

func NewUserID(raw string) (UserID, error) {
	v, err := boundedString("userId", raw, MaxUserIDLength, true)
	if err != nil {
		return UserID{}, err
	}
	return UserID{value: v}, nil
}

func (id UserID) Value() string { return id.value }
func (id UserID) String() string { return id.value }
func (id UserID) Equals(o UserID) bool { return id.value == o.value }
func (id UserID) IsZero() bool { return id.value == "" }

const sessionIDPrefix = "ss_"

// SessionID identifies a shopping session.
type SessionID struct{ value string }

// NewSessionID generates a fresh prefixed session identifier.
func NewSessionID() SessionID {
	return SessionID{value: newPrefixedID(sessionIDPrefix)}
}

// ParseSessionID validates an externally supplied session identifier.
func ParseSessionID(raw string) (SessionID, error) {
	v, err := identifier("sessionId", raw)
	if err != nil {
		return SessionID{}, err
	}
	return SessionID{value: v}, nil
}

func (id SessionID) Value() string { return id.value }
func (id SessionID) String() string { return id.value }
func (id SessionID) Equals(o SessionID) bool { return id.value == o.value }

const checkRecordIDPrefix = "chk_"

// CheckRecordID identifies an ingredient check record.
type CheckRecordID struct{ value string }

func NewCheckRecordID() CheckRecordID {
	return CheckRecordID{value: newPrefixedID(checkRecordIDPrefix)}
}

func ParseCheckRecordID(raw string) (CheckRecordID, error) {
	v, err := identifier("checkRecordId", raw)
	if err != nil {
		return CheckRecordID{}, err
	}
	return CheckRecordID{value: v}, nil
}

func (id CheckRecordID) Value() string { return id.value }
func (id CheckRecordID) String() string { return id.value }

const ingredientIDPrefix = "ing_"

// IngredientID identifies an ingredient.
type IngredientID struct{ value string }

func NewIngredientID() IngredientID {
	return IngredientID{value: newPrefixedID(ingredientIDPrefix)}
}

func ParseIngredientID(raw string) (IngredientID, error) {
	v, err := identifier("ingredientId", raw)
	if err != nil {
		return IngredientID{}, err
	}
	return IngredientID{value: v}, nil
}

func (id IngredientID) Value() string { return id.value }
func (id IngredientID) String() string { return id.value }
func (id IngredientID) Equals(o IngredientID) bool { return id.value == o.value }

// CategoryID identifies a category.
type CategoryID struct{ value string }

func ParseCategoryID(raw string) (CategoryID, error) {
	v, err := identifier("categoryId", raw)
	if err != nil {
		return CategoryID{}, err
	}
	return CategoryID{value: v}, nil
}

func (id CategoryID) Value() string { return id.value }
func (id CategoryID) String() string { return id.value }
func (id CategoryID) Equals(o CategoryID) bool { return id.value == o.value }

// UnitID identifies a unit of measure.
type UnitID struct{ value string }

func ParseUnitID(raw string) (UnitID, error) {
	v, err := identifier("unitId", raw)
	if err != nil {
		return UnitID{}, err
	}
	return UnitID{value: v}, nil
}

func (id UnitID) Value() string { return id.value }
func (id UnitID) String() string { return id.value }
func (id UnitID) Equals(o UnitID) bool { return id.value == o.value }

// CategoryName is a trimmed category label of at most 20 characters.
type CategoryName struct{ value string }

func NewCategoryName(raw string) (CategoryName, error) {
	v, err := boundedString("categoryName", raw, MaxCategoryNameLength, true)
	if err != nil {
		return CategoryName{}, err
	}
	return CategoryName{value: v}, nil
}

func (n CategoryName) Value() string { return n.value }
func (n CategoryName) Equals(o CategoryName) bool { return n.value == o.value }

// UnitName is a trimmed unit label of at most 20 characters.
type UnitName struct{ value string }

func NewUnitName(raw string) (UnitName, error) {
	v, err := boundedString("unitName", raw, MaxUnitNameLength, true)
	if err != nil {
		return UnitName{}, err
	}
	return UnitName{value: v}, nil
}

func (n UnitName) Value() string { return n.value }
func (n UnitName) Equals(o UnitName) bool { return n.value == o.value }

// UnitSymbol is a short unit abbreviation such as "g" or "個".
type UnitSymbol struct{ value string }

func NewUnitSymbol(raw string) (UnitSymbol, error) {
	v, err := boundedString("unitSymbol", raw, MaxUnitSymbolLength, true)
	if err != nil {
		return UnitSymbol{}, err
	}
	return UnitSymbol{value: v}, nil
}

func (s UnitSymbol) Value() string { return s.value }
func (s UnitSymbol) Equals(o UnitSymbol) bool { return s.value == o.value }

// IngredientName is a trimmed ingredient label of at most 50 characters.
type IngredientName struct{ value string }

func NewIngredientName(raw string) (IngredientName, error) {
	v, err := boundedString("name", raw, MaxIngredientNameLength, true)
	if err != nil {
		return IngredientName{}, err
	}
	return IngredientName{value: v}, nil
}

func (n IngredientName) Value() string { return n.value }
func (n IngredientName) Equals(o IngredientName) bool { return n.value == o.value }

// Memo is an optional free-text note of at most 200 characters.
type Memo struct{ value string }

func NewMemo(raw string) (Memo, error) {
	v, err := boundedString("memo", raw, MaxMemoLength, false)
	if err != nil {
		return Memo{}, err
	}
	return Memo{value: v}, nil
}

func (m Memo) Value() string { return m.value }
func (m Memo) IsEmpty() bool { return m.value == "" }
func (m Memo) Equals(o Memo) bool { return m.value == o.value }

// Location is optional descriptive metadata for where a session takes place.
type Location struct{ value string }

func NewLocation(raw string) (Location, error) {
	v, err := boundedString("location", raw, MaxLocationLength, false)
	if err != nil {
		return Location{}, err
	}
	return Location{value: v}, nil
}

func (l Location) Value() string { return l.value }
func (l Location) IsEmpty() bool { return l.value == "" }
func (l Location) Equals(o Location) bool { return l.value == o.value }

// Quantity is a finite, non-negative amount bounded by MaxQuantity.
type Quantity struct{ value float64 }

func NewQuantity(field string, raw float64) (Quantity, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return Quantity{}, apperr.Validation(field, apperr.RuleInvalidValue, fmt.Sprintf("%s must be a number", field))
	}
	if raw < 0 || raw > MaxQuantity {
		return Quantity{}, apperr.Validation(field, apperr.RuleOutOfRange, fmt.Sprintf("%s must be between 0 and %d", field, MaxQuantity))
	}
	return Quantity{value: raw}, nil
}

func (q Quantity) Value() float64 { return q.value }
func (q Quantity) IsZero() bool { return q.value == 0 }
func (q Quantity) Equals(o Quantity) bool { return q.value == o.value }

// DisplayOrder positions reference data in lists; zero by default.
type DisplayOrder struct{ value int }

func NewDisplayOrder(raw int) (DisplayOrder, error) {
	if raw < 0 {
		return DisplayOrder{}, apperr.Validation("displayOrder", apperr.RuleOutOfRange, "displayOrder must not be negative")
	}
	return DisplayOrder{value: raw}, nil
}

func (d DisplayOrder) Value() int { return d.value }
