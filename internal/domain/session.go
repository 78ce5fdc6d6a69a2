package domain

import "time"

const DefaultSessionFreshness = time.Hour

// SessionToken is the market's cookie set captured after login.
type SessionToken struct {
	Cookies  map[string]string
	IssuedAt time.Time
}

func (t SessionToken) IsZero() bool {
	return len(t.Cookies) == 0 && t.IssuedAt.IsZero()
}

func (t SessionToken) IsFresh(now time.Time, window time.Duration) bool {
	if t.IsZero() {
		return false
	}
	if window <= 0 {
		window = DefaultSessionFreshness
	}

	return now.Sub(t.IssuedAt) <= window
}

func (t SessionToken) Equal(other SessionToken) bool {
	if !t.IssuedAt.Equal(other.IssuedAt) || len(t.Cookies) != len(other.Cookies) {
		return false
	}
	for name, value := range t.Cookies {
		if otherValue, ok := other.Cookies[name]; !ok || otherValue != value {
			return false
		}
	}
	return true
}
