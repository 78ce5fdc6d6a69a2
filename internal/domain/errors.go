package domain

import "errors"

var (
	ErrAuth       = errors.New("market login rejected")
	ErrFetch      = errors.New("market fetch failed")
	ErrParse      = errors.New("listing parse failed")
	ErrSubmission = errors.New("acceptance submission failed")

	ErrSessionNotFound     = errors.New("session not found")
	ErrSettingsNotFound    = errors.New("watcher settings not found")
	ErrRulesNotFound       = errors.New("matching rules not found")
	ErrLoadAlreadyAccepted = errors.New("load already accepted")
)
