package domain

import (
	"time"
)

type Group struct {
	ID   int64
	Name string
	// MemberCount is nil when the count could not be read; the stored value is then kept.
	MemberCount *int
	UpdatedAt   time.Time
}
