package staff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUtilisation(t *testing.T) {
	tests := []struct {
		name      string
		booked    float64
		available float64
		want      int
	}{
		{name: "no availability", booked: 10, available: 0, want: 0},
		{name: "negative availability", booked: 10, available: -5, want: 0},
		{name: "nothing booked", booked: 0, available: 37.5, want: 0},
		{name: "half", booked: 18.75, available: 37.5, want: 50},
		{name: "rounds down", booked: 1, available: 3, want: 33},
		{name: "rounds up", booked: 2, available: 3, want: 67},
		{name: "overbooked", booked: 45, available: 37.5, want: 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Utilisation(tt.booked, tt.available))
		})
	}
}

func TestAvailableHoursBetween(t *testing.T) {
	monday := time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)
	assert.InDelta(t, 35.0, AvailableHoursBetween(35, monday, monday.AddDate(0, 0, 6)), 1e-9)
	assert.InDelta(t, 5.0, AvailableHoursBetween(35, monday, monday), 1e-9)
	assert.InDelta(t, 70.0, AvailableHoursBetween(35, monday, monday.AddDate(0, 0, 13)), 1e-9)
	assert.Equal(t, 0.0, AvailableHoursBetween(35, monday, monday.AddDate(0, 0, -2)))
}
