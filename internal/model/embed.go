package model

// Vertical is the product category an embed serves.
type Vertical string

const (
	VerticalBarber    Vertical = "barber"
	VerticalDental    Vertical = "dental"
	VerticalDetailing Vertical = "detailing"
	VerticalCustom    Vertical = "custom"
)

// ValidVerticals contains all valid vertical values.
var ValidVerticals = []Vertical{VerticalBarber, VerticalDental, VerticalDetailing, VerticalCustom}

// IsValid checks if the vertical is a known value.
func (v Vertical) IsValid() bool {
	for _, valid := range ValidVerticals {
		if v == valid {
			return true
		}
	}
	return false
}

// Embed is one configured widget instance. Writes replace the whole record.
type Embed struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	ClientID        string         `json:"clientId,omitempty"` // empty = unassigned/demo embed
	Vertical        Vertical       `json:"vertical"`
	Theme           string         `json:"theme,omitempty"`
	Width           int            `json:"width,omitempty"`
	Height          int            `json:"height,omitempty"`
	VerticalOptions map[string]any `json:"verticalOptions,omitempty"`
}

// IsAssigned returns true if the embed has an owning client.
func (e *Embed) IsAssigned() bool {
	return e.ClientID != ""
}
