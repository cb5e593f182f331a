package domain

import "time"

const (
	// MaxLongURLLength and MaxShortURLLength bound the stored columns.
	MaxLongURLLength  = 2500
	MaxShortURLLength = 32

	// ValidationCooldown is the minimum time between two validation passes of a link.
	ValidationCooldown = 60 * time.Minute
)

// Link represents a shortened URL and the health of its target
type Link struct {
	ID               int64     `json:"id"`
	Owner            string    `json:"owner"`
	LongURL          string    `json:"long_url"`
	ShortURL         string    `json:"short_url"`
	IsBroken         bool      `json:"is_broken"`
	ValidationError  string    `json:"validation_error"`
	RedirectLocation string    `json:"redirect_location,omitempty"`
	LastChecked      time.Time `json:"last_checked"`
	ViewCount        int64     `json:"view_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CanBeValidated reports whether the cooldown since the last validation pass has elapsed.
func (l *Link) CanBeValidated(now time.Time) bool {
	if l.LastChecked.IsZero() {
		return true
	}
	return !now.Before(l.LastChecked.Add(ValidationCooldown))
}

// MarkHealthy clears any previous failure.
func (l *Link) MarkHealthy() {
	l.IsBroken = false
	l.ValidationError = ""
}

// MarkBroken records why the target could not be confirmed reachable.
func (l *Link) MarkBroken(reason string) {
	l.IsBroken = true
	l.ValidationError = reason
}

// ResetValidation forgets the outcome of earlier passes, e.g. after the target changed.
func (l *Link) ResetValidation() {
	l.IsBroken = false
	l.ValidationError = ""
	l.RedirectLocation = ""
	l.LastChecked = time.Time{}
}

// LinkStats is the staff overview of redirect traffic
type LinkStats struct {
	TotalLinks  int64  `json:"total_links"`
	TotalViews  int64  `json:"total_views"`
	BrokenLinks int64  `json:"broken_links"`
	TopLinks    []Link `json:"top_links"`
}
