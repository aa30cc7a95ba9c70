package booking

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Slot is a half-open time-of-day interval [Start, End) in minutes
// after midnight.
type Slot struct {
	Start int
	End   int
}

// ParseSlot accepts "09:00 - 10:00" and "09:00-10:00".
func ParseSlot(raw string) (Slot, error) {
	left, right, ok := strings.Cut(raw, "-")
	if !ok {
		return Slot{}, fmt.Errorf("slot %q: missing '-'", raw)
	}
	start, err := parseClock(strings.TrimSpace(left))
	if err != nil {
		return Slot{}, fmt.Errorf("slot %q: %w", raw, err)
	}
	end, err := parseClock(strings.TrimSpace(right))
	if err != nil {
		return Slot{}, fmt.Errorf("slot %q: %w", raw, err)
	}
	if end <= start {
		return Slot{}, fmt.Errorf("slot %q: end must be after start", raw)
	}
	return Slot{Start: start, End: end}, nil
}

// NormalizeSlot parses raw and returns its canonical form.
func NormalizeSlot(raw string) (string, error) {
	s, err := ParseSlot(raw)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}

func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	total := h*60 + m
	if total > 24*60 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return total, nil
}

func (s Slot) String() string {
	return fmt.Sprintf("%02d:%02d - %02d:%02d", s.Start/60, s.Start%60, s.End/60, s.End%60)
}

// Duration returns the slot length.
func (s Slot) Duration() time.Duration {
	return time.Duration(s.End-s.Start) * time.Minute
}

// Bounds returns the absolute start and end of the slot on date
// (YYYY-MM-DD) in loc.
func (s Slot) Bounds(date string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	start := day.Add(time.Duration(s.Start) * time.Minute)
	end := day.Add(time.Duration(s.End) * time.Minute)
	return start, end, nil
}

// SlotType describes one family of generated slots.
type SlotType struct {
	Name     string `yaml:"name" json:"name"`
	Duration int    `yaml:"duration_minutes" json:"durationMinutes"`
	Price    int    `yaml:"price" json:"price"`
}

// Catalog is the finite set of bookable slots.  Slots of each type are
// generated back to back from OpenHour until the next one would pass
// CloseHour.
type Catalog struct {
	OpenHour  int        `yaml:"open_hour"`
	CloseHour int        `yaml:"close_hour"`
	Types     []SlotType `yaml:"types"`
}

// DefaultCatalog is the 08:00-20:00 catalog with 30, 60 and 90 minute slots.
func DefaultCatalog() Catalog {
	return Catalog{
		OpenHour:  8,
		CloseHour: 20,
		Types: []SlotType{
			{Name: "short", Duration: 30, Price: 20},
			{Name: "normal", Duration: 60, Price: 40},
			{Name: "long", Duration: 90, Price: 60},
		},
	}
}

// Type looks up a slot type by name.
func (c Catalog) Type(name string) (SlotType, bool) {
	for _, t := range c.Types {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return SlotType{}, false
}

// Slots returns the generated slots of the named type, or nil when the
// type is unknown.
func (c Catalog) Slots(name string) []Slot {
	t, ok := c.Type(name)
	if !ok || t.Duration <= 0 {
		return nil
	}
	var out []Slot
	end := c.CloseHour * 60
	for cur := c.OpenHour * 60; cur+t.Duration <= end; cur += t.Duration {
		out = append(out, Slot{Start: cur, End: cur + t.Duration})
	}
	return out
}

// Price returns the price of the named slot type, or 0 when unknown.
func (c Catalog) Price(name string) int {
	t, _ := c.Type(name)
	return t.Price
}

// Contains reports whether slot belongs to the named type's slots, or to
// any type when name is empty.
func (c Catalog) Contains(name string, slot Slot) bool {
	types := c.Types
	if name != "" {
		t, ok := c.Type(name)
		if !ok {
			return false
		}
		types = []SlotType{t}
	}
	for _, t := range types {
		for _, s := range c.Slots(t.Name) {
			if s == slot {
				return true
			}
		}
	}
	return false
}

// TypeOf returns the first type, in catalog order, whose slots include
// slot.
func (c Catalog) TypeOf(slot Slot) (SlotType, bool) {
	for _, t := range c.Types {
		if c.Contains(t.Name, slot) {
			return t, true
		}
	}
	return SlotType{}, false
}

// TypeNames returns the catalog's slot type names, sorted.
func (c Catalog) TypeNames() []string {
	names := make([]string, 0, len(c.Types))
	for _, t := range c.Types {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that the catalog can generate at least one slot.
func (c Catalog) Validate() error {
	if c.OpenHour < 0 || c.CloseHour > 24 || c.OpenHour >= c.CloseHour {
		return fmt.Errorf("catalog: invalid operating window %d-%d", c.OpenHour, c.CloseHour)
	}
	if len(c.Types) == 0 {
		return fmt.Errorf("catalog: no slot types")
	}
	for _, t := range c.Types {
		if strings.TrimSpace(t.Name) == "" || t.Duration <= 0 {
			return fmt.Errorf("catalog: invalid slot type %+v", t)
		}
		if t.Price < 0 {
			return fmt.Errorf("catalog: negative price for %s", t.Name)
		}
	}
	return nil
}
