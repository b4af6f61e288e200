package store

import "time"

// Profile is a stored share link together with its probe history.
type Profile struct {
	ID   uint   `gorm:"primaryKey"`
	Hash string `gorm:"uniqueIndex"`
	Raw  string

	Remark   string
	Protocol string
	Address  string
	Port     int

	// GeoIP annotation, when the databases are configured.
	Country string
	ISP     string

	// LatencyMS is an exponential moving average over successful probes.
	// Zero means the profile never passed one.
	LatencyMS float64
	Failures  int
	LastOKAt  time.Time

	CreatedAt time.Time
}
