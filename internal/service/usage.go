package service

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/iliyamo/study-room-booking/internal/booking"
	"github.com/iliyamo/study-room-booking/internal/model"
)

// UsageHistory splits a user's approved bookings at the current time.
type UsageHistory struct {
	Active    []ReservationView `json:"active"`
	Completed []ReservationView `json:"completed"`
}

// History returns the user's approved bookings.  Completed ones, whose
// slot has ended, come latest first; active ones keep creation order.
func (s *BookingService) History(ctx context.Context, userID uint64) (UsageHistory, error) {
	rs, err := Collect(s.reservations.Query(ctx, model.ReservationFilter{
		UserID: userID, Statuses: []model.ReservationStatus{model.StatusApproved},
	}))
	if err != nil {
		return UsageHistory{}, err
	}
	out := UsageHistory{Active: []ReservationView{}, Completed: []ReservationView{}}
	for _, v := range s.Views(rs) {
		if v.Expired {
			out.Completed = append(out.Completed, v)
		} else {
			out.Active = append(out.Active, v)
		}
	}
	slices.SortStableFunc(out.Completed, func(a, b ReservationView) int {
		return s.slotEnd(b.Reservation).Compare(s.slotEnd(a.Reservation))
	})
	return out, nil
}

func (s *BookingService) slotEnd(r model.Reservation) time.Time {
	slot, err := booking.ParseSlot(r.TimeSlot)
	if err != nil {
		return time.Time{}
	}
	_, end, _ := slot.Bounds(r.Date, s.loc)
	return end
}

// Analytics is the admin dashboard summary.
type Analytics struct {
	TotalRooms       int    `json:"totalRooms"`
	OccupiedRooms    int    `json:"occupiedRooms"`
	AvailableRooms   int    `json:"availableRooms"`
	OccupancyRate    int    `json:"occupancyRate"`
	SystemEfficiency int    `json:"systemEfficiency"`
	TotalBookings    int    `json:"totalBookings"`
	PeakSlot         string `json:"peakSlot"`
	PeakBookings     int    `json:"peakBookings"`
}

// Analytics reports room occupancy as a whole percentage and the time
// slot booked most often across every reservation.  Ties go to the slot
// seen first.
func (s *BookingService) Analytics(ctx context.Context) (Analytics, error) {
	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return Analytics{}, err
	}
	var a Analytics
	a.TotalRooms = len(rooms)
	for _, r := range rooms {
		if r.Occupied {
			a.OccupiedRooms++
		}
	}
	a.AvailableRooms = a.TotalRooms - a.OccupiedRooms
	if a.TotalRooms > 0 {
		a.OccupancyRate = int(math.Round(float64(a.OccupiedRooms) * 100 / float64(a.TotalRooms)))
	}
	a.SystemEfficiency = 100 - a.OccupancyRate

	var (
		counts = map[string]int{}
		order  []string
	)
	for r, err := range s.reservations.Query(ctx, model.ReservationFilter{}) {
		if err != nil {
			return Analytics{}, err
		}
		a.TotalBookings++
		if counts[r.TimeSlot] == 0 {
			order = append(order, r.TimeSlot)
		}
		counts[r.TimeSlot]++
	}
	for _, slot := range order {
		if counts[slot] > a.PeakBookings {
			a.PeakSlot, a.PeakBookings = slot, counts[slot]
		}
	}
	return a, nil
}
