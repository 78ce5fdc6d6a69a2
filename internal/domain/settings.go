package domain

import "fmt"

const DefaultDailyThreshold = 1

type WatcherSettings struct {
	Enabled        bool
	DailyThreshold int
}

func DefaultWatcherSettings(dailyThreshold int) WatcherSettings {
	return WatcherSettings{Enabled: true, DailyThreshold: dailyThreshold}
}

func (s WatcherSettings) Validate() error {
	if s.DailyThreshold < 0 {
		return fmt.Errorf("daily threshold must not be negative, got %d", s.DailyThreshold)
	}
	return nil
}
