package app

import "time"

// Event subjects. All of them fall under SubjectPrefix.
const (
	SubjectPrefix            = "larder.shopping."
	SubjectSessionStarted    = SubjectPrefix + "session.started"
	SubjectSessionCompleted  = SubjectPrefix + "session.completed"
	SubjectSessionAbandoned  = SubjectPrefix + "session.abandoned"
	SubjectIngredientChecked = SubjectPrefix + "ingredient.checked"
)

// Event is the payload published for every shopping lifecycle change.
type Event struct {
	Type         string    `json:"type"`
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	Status       string    `json:"status,omitempty"`
	IngredientID string    `json:"ingredient_id,omitempty"`
	StockStatus  string    `json:"stock_status,omitempty"`
	ExpiryStatus string    `json:"expiry_status,omitempty"`
	At           time.Time `json:"at"`
}
