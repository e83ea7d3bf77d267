package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
)

// Bot runs observe → triage → decide → act cycles against one API.
type Bot struct {
	Observer   *Observer
	Actor      *Actor
	Memory     *CycleMemory
	MemoryPath string // empty disables saving
}

// NewBot creates a bot for the given API base URL and operator key.
func NewBot(baseURL, adminKey, memoryPath string) *Bot {
	mem := &CycleMemory{}
	if memoryPath != "" {
		mem = LoadMemory(memoryPath)
	}
	return &Bot{
		Observer:   NewObserver(baseURL),
		Actor:      NewActor(baseURL, adminKey),
		Memory:     mem,
		MemoryPath: memoryPath,
	}
}

// RunCycle executes one cycle and returns what was decided. Failed orders
// are logged and skipped; the rest of the cycle still runs.
func (b *Bot) RunCycle(ctx context.Context) (*Decision, error) {
	obs, err := b.Observer.Observe(ctx)
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}
	h := Triage(obs)
	slog.Info("observation complete",
		"tick", obs.Status.Tick,
		"fire_area", h.FireArea,
		"agents", h.Agents,
		"idle", h.Idle,
		"level", h.Level,
	)

	decision := Decide(obs, h)
	slog.Info("decision made", "action", decision.Action, "rationale", decision.Rationale)

	sent := 0
	for _, order := range decision.Orders {
		res, err := b.Actor.Act(ctx, order)
		if err != nil {
			slog.Error("order failed", "row", order.Row, "col", order.Col, "error", err)
			continue
		}
		if res.Changed {
			sent++
		}
		slog.Info("order executed",
			"row", order.Row,
			"col", order.Col,
			"waypoints", res.Waypoints,
			"changed", res.Changed,
		)
	}

	b.Memory.Record(CycleRecord{
		RunID:    obs.Status.RunID,
		Tick:     obs.Status.Tick,
		Action:   decision.Action,
		FireArea: h.FireArea,
		Orders:   sent,
		Level:    h.Level,
	})
	if delta, ok := b.Memory.Trend(); ok {
		slog.Info("fire trend", "delta", delta)
	}
	if b.MemoryPath != "" {
		if err := b.Memory.Save(b.MemoryPath); err != nil {
			slog.Error("failed to save dispatcher memory", "error", err)
		}
	}
	return decision, nil
}
