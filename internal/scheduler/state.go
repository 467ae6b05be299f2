package scheduler

import (
	"time"

	"github.com/inovacc/ghnotify/internal/model"
)

// State is the observable scheduler state.
type State int

const (
	StateIdle State = iota
	StateSyncing
	StatePaused
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSyncing:
		return "syncing"
	case StatePaused:
		return "paused"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Status is a snapshot published on every transition.
type Status struct {
	State        State
	Reason       string
	CycleID      string
	LastSyncAt   time.Time
	TimerRunning bool
	Interval     time.Duration
	RateLimit    *model.RateLimit
	Recent       []model.NotificationThread
}

// CycleResult summarizes one finished sync cycle.
type CycleResult struct {
	CycleID     string
	Threads     int
	Delivered   int
	NotModified bool
	Paused      bool
	LastSyncAt  time.Time
}
