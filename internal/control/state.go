package control

import "errors"

// State is the lifecycle state of the System.
type State string

const (
	StateInitialized  State = "initialized"
	StateRunning      State = "running"
	StateShuttingDown State = "shutting_down"
	StateStopped      State = "stopped"
)

var (
	// ErrAlreadyRunning is returned by Start when the system is not startable.
	ErrAlreadyRunning = errors.New("system already running")
)
