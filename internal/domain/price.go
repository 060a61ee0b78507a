package domain

import "time"

// PriceSample is a single observed price for a token on a venue.
type PriceSample struct {
	Venue     string
	Token     string
	Price     float64
	Timestamp time.Time
}

// PriceSnapshot is the latest eligible sample per venue for one token.
// Venues without enough history are absent from the map.
type PriceSnapshot struct {
	Token  string
	Venues map[string]PriceSample
}

// VenueCount returns the number of venues present in the snapshot.
func (s PriceSnapshot) VenueCount() int {
	return len(s.Venues)
}
