// Package daemon owns the long-running cardflow process lifecycle.
//
// It holds a flock-based lock so only one daemon works a data directory,
// requeues jobs left RUNNING by a crashed predecessor, and starts and stops
// the workflow manager. Stage logic lives in the stage packages; wiring of
// concrete handlers happens in daemonrun.
package daemon
