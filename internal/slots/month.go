package slots

import "time"

// MonthDay is one cell of the date picker grid.
type MonthDay struct {
	Date     string `json:"date"`
	Day      int    `json:"day"`
	Past     bool   `json:"past"`
	Today    bool   `json:"today"`
	Selected bool   `json:"selected"`
}

// Month is the date picker for one calendar month. Leading holds the number
// of blank cells before day one in a Sunday-first week.
type Month struct {
	Year    int        `json:"year"`
	Month   time.Month `json:"month"`
	Label   string     `json:"label"`
	Leading int        `json:"leading"`
	Days    []MonthDay `json:"days"`
	Prev    string     `json:"prev"`
	Next    string     `json:"next"`
}

// MonthGrid lays out the month containing ref. Days before today are marked
// past so the client renders them disabled.
func MonthGrid(ref, selected, today time.Time, loc *time.Location) Month {
	loc = locOrUTC(loc)
	y, m, _ := ref.In(loc).Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	next := first.AddDate(0, 1, 0)

	grid := Month{
		Year:    y,
		Month:   m,
		Label:   first.Format("January 2006"),
		Leading: int(first.Weekday()),
		Prev:    first.AddDate(0, -1, 0).Format("2006-01"),
		Next:    next.Format("2006-01"),
	}
	for day := first; day.Before(next); day = day.AddDate(0, 0, 1) {
		grid.Days = append(grid.Days, MonthDay{
			Date:     DayKey(day, loc),
			Day:      day.Day(),
			Past:     BeforeDay(day, today, loc),
			Today:    SameDay(day, today, loc),
			Selected: !selected.IsZero() && SameDay(day, selected, loc),
		})
	}
	return grid
}

// ParseMonth parses YYYY-MM as the first day of that month in loc.
func ParseMonth(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01", value, locOrUTC(loc))
}
