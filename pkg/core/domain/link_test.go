package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanBeValidated(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		lastChecked time.Time
		want        bool
	}{
		{name: "never checked", want: true},
		{name: "checked just now", lastChecked: now, want: false},
		{name: "inside cooldown", lastChecked: now.Add(-59 * time.Minute), want: false},
		{name: "cooldown elapsed exactly", lastChecked: now.Add(-ValidationCooldown), want: true},
		{name: "long ago", lastChecked: now.Add(-48 * time.Hour), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &Link{LastChecked: tt.lastChecked}
			assert.Equal(t, tt.want, l.CanBeValidated(now))
		})
	}
}

func TestMarkAndReset(t *testing.T) {
	l := &Link{RedirectLocation: "https://example.com/b", LastChecked: time.Now()}

	l.MarkBroken("Not found.")
	assert.True(t, l.IsBroken)
	assert.Equal(t, "Not found.", l.ValidationError)

	l.MarkHealthy()
	assert.False(t, l.IsBroken)
	assert.Empty(t, l.ValidationError)

	l.MarkBroken("Not found.")
	l.ResetValidation()
	assert.Equal(t, Link{}, *l)
}

func TestCanManage(t *testing.T) {
	link := &Link{Owner: "alice@example.com"}

	assert.True(t, Principal{ID: "alice@example.com"}.CanManage(link))
	assert.False(t, Principal{ID: "bob@example.com"}.CanManage(link))
	assert.True(t, Principal{ID: "bob@example.com", Staff: true}.CanManage(link))
	assert.False(t, Principal{}.CanManage(&Link{}))
	assert.False(t, Principal{Staff: true}.CanManage(nil))
}
