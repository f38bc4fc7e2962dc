package reservation

import "time"

// Status reflects the lifecycle kept by the external reservation system.
type Status string

const (
	StatusActive     Status = "active"
	StatusCheckedIn  Status = "checked_in"
	StatusCheckedOut Status = "checked_out"
	StatusCancelled  Status = "cancelled"
)

// Reservation mirrors the reservation API payload. Field names follow the
// upstream JSON contract and are never persisted locally.
type Reservation struct {
	ID           string    `json:"id"`
	RoomID       string    `json:"room_id"`
	CheckInDate  time.Time `json:"check_in_date"`
	CheckOutDate time.Time `json:"check_out_date"`
	Status       Status    `json:"status"`
}

// CanCheckIn reports whether the reservation accepts a check-in action.
func (r Reservation) CanCheckIn() bool {
	return r.Status == StatusActive
}

// CanCheckOut reports whether the reservation accepts a check-out action.
func (r Reservation) CanCheckOut() bool {
	return r.Status == StatusCheckedIn
}
