package stage

// Health summarizes whether a stage can make progress. A ready stage with a
// detail is degraded: it runs, but on a fallback such as a stub provider.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Health states reported by State.
const (
	StateReady     = "ready"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

// Healthy reports a stage running against its configured provider.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Degraded reports a stage that still completes jobs on a fallback.
func Degraded(name, detail string) Health {
	return Health{Name: name, Ready: true, Detail: detail}
}

// Unhealthy reports a stage that cannot complete jobs.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

// State classifies h as ready, degraded, or unhealthy.
func (h Health) State() string {
	switch {
	case !h.Ready:
		return StateUnhealthy
	case h.Detail != "":
		return StateDegraded
	default:
		return StateReady
	}
}
