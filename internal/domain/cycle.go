package domain

import "strconv"

type CycleKind string

const (
	CycleSkipped    CycleKind = "skipped"
	CycleNoNewLoads CycleKind = "no_new_loads"
	CycleAccepted   CycleKind = "accepted"
	CycleAborted    CycleKind = "aborted"
)

const (
	ReasonOutsideHours = "outside hours"
	ReasonDisabled     = "disabled"
	ReasonThresholdMet = "threshold met"
)

type CycleResult struct {
	Kind     CycleKind
	Reason   string
	Accepted []AcceptedLoad
}

func Skipped(reason string) CycleResult {
	return CycleResult{Kind: CycleSkipped, Reason: reason}
}

func NoNewLoads() CycleResult {
	return CycleResult{Kind: CycleNoNewLoads}
}

func Accepted(loads []AcceptedLoad) CycleResult {
	return CycleResult{Kind: CycleAccepted, Accepted: loads}
}

// Aborted reports a cycle that stopped on a transient condition. The next
// scheduled tick is the retry.
func Aborted(reason string) CycleResult {
	return CycleResult{Kind: CycleAborted, Reason: reason}
}

func (r CycleResult) Count() int {
	return len(r.Accepted)
}

func (r CycleResult) String() string {
	switch r.Kind {
	case CycleAccepted:
		return "accepted " + strconv.Itoa(len(r.Accepted))
	case CycleSkipped, CycleAborted:
		return string(r.Kind) + ": " + r.Reason
	default:
		return string(r.Kind)
	}
}
