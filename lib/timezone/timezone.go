package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Asia/Tokyo")
	if err != nil {
		panic(err)
	}
}

// force the timezone to be JST, the target site publishes per-day pages
// keyed to japanese calendar days, so date arithmetic done in the server's
// local zone would shift records across day boundaries
func Now() time.Time {
	return time.Now().In(Location)
}

// Date formats a time as the YYYY-MM-DD key used everywhere a calendar
// day identifies a page or a row.
func Date(t time.Time) string {
	return t.In(Location).Format("2006-01-02")
}

// ParseDate parses a YYYY-MM-DD key back into a JST midnight time.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, Location)
}
