// Package daemonrun builds the production stage wiring and runs the daemon
// until it is signalled to stop.
package daemonrun
