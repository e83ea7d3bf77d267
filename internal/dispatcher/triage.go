package dispatcher

// Alert levels, most severe first.
const (
	LevelCritical  = "CRITICAL"
	LevelWarning   = "WARNING"
	LevelWatch     = "WATCH"
	LevelContained = "CONTAINED"
)

// Health holds derived signals computed from an Observation.
// Runs before Decide and never touches the network.
type Health struct {
	FireArea    int
	Agents      int
	Idle        int // no waypoints and no cached path
	Assigned    int // agents the plan has a route for
	Unreachable int // idle agents the plan could not route
	Level       string
}

// Triage computes a Health from the observation.
func Triage(obs *Observation) *Health {
	h := &Health{
		FireArea: obs.Status.FireArea,
		Agents:   len(obs.Strategy.Agents),
	}

	planned := make(map[int]bool, len(obs.Strategy.Assignments))
	for _, a := range obs.Strategy.Assignments {
		planned[a.Agent] = true
	}
	h.Assigned = len(planned)

	for _, a := range obs.Strategy.Agents {
		if len(a.Waypoints) > 0 || len(a.Path) > 0 {
			continue
		}
		h.Idle++
		if !planned[a.Index] {
			h.Unreachable++
		}
	}

	switch {
	case h.FireArea == 0:
		h.Level = LevelContained
	case h.Agents == 0:
		h.Level = LevelCritical
	case h.FireArea > 4*h.Agents:
		h.Level = LevelCritical
	case h.Assigned == 0:
		h.Level = LevelWarning
	default:
		h.Level = LevelWatch
	}
	return h
}
