package model

// Category is a row in categories.csv.
type Category struct {
	Name        string
	Direction   Direction // empty = usable for both directions
	Description string
}
