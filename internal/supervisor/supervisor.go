// Package supervisor implements the Supervisor: activation and
// deactivation of agents, cooperative tick driving, and an aggregate
// health snapshot surfaced over the diagnostic HTTP API.
package supervisor

import (
	"context"
	"sync"

	"github.com/r3e-network/flashcore/internal/ledger"
	"github.com/r3e-network/flashcore/internal/marketdata"
	"github.com/r3e-network/flashcore/internal/population"
	"github.com/r3e-network/flashcore/internal/ratelimit"
	"github.com/r3e-network/flashcore/internal/scheduler"
	"github.com/r3e-network/flashcore/internal/system"
	"github.com/r3e-network/flashcore/internal/txengine"
)

// evolutionCadence is how many TickAll calls elapse between periodic
// generate_for calls seeded from observed market conditions. At the
// five-second supervisor schedule this is roughly five minutes.
const evolutionCadence = 60

// memeActivityFraction estimates meme-token activity as the fraction of
// total observed volume carried by population.MemePairs().
func memeActivityFraction(volumes map[string]float64) float64 {
	if len(volumes) == 0 {
		return 0
	}
	memeSet := make(map[string]bool, len(population.MemePairs()))
	for _, pair := range population.MemePairs() {
		memeSet[pair] = true
	}
	var total, meme float64
	for pair, vol := range volumes {
		total += vol
		if memeSet[pair] {
			meme += vol
		}
	}
	if total == 0 {
		return 0
	}
	return meme / total
}

// Tickable is the cooperative unit of work an agent exposes. A tick must
// return promptly; the Supervisor never blocks holding a global lock while
// a tick runs.
type Tickable interface {
	Tick(ctx context.Context) error
	Name() string
}

// StatsProvider is implemented by agents that expose execution/success
// counters for the health snapshot.
type StatsProvider interface {
	ExecutionStats() (executions, successes int)
}

// AgentHandle is one agent's registration with the Supervisor: its
// cooperative tick contract plus an independent active flag the Supervisor
// toggles without stopping the underlying goroutine.
type AgentHandle struct {
	agent  Tickable
	mu     sync.Mutex
	active bool
}

// Tick runs the wrapped agent's tick only while active.
func (h *AgentHandle) Tick(ctx context.Context) error {
	h.mu.Lock()
	active := h.active
	h.mu.Unlock()
	if !active {
		return nil
	}
	return h.agent.Tick(ctx)
}

// Name proxies the wrapped agent's name.
func (h *AgentHandle) Name() string { return h.agent.Name() }

// Active reports whether this agent is currently active.
func (h *AgentHandle) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

func (h *AgentHandle) setActive(v bool) {
	h.mu.Lock()
	h.active = v
	h.mu.Unlock()
}

// AgentSnapshot is one agent's row in the health snapshot.
type AgentSnapshot struct {
	Name       string
	Active     bool
	Executions int
	Successes  int
}

// HealthSnapshot is the Supervisor's aggregate health surface.
type HealthSnapshot struct {
	RegisteredWallets   int
	Agents              []AgentSnapshot
	TotalExecutions     int
	TotalSuccesses      int
	TotalRealizedProfit float64
	PopulationSize      int
	RateGovernor        ratelimit.Summary
}

// Supervisor owns agent activation, the cooperative tick scheduler, and
// the aggregate health snapshot.
type Supervisor struct {
	mu      sync.RWMutex
	handles map[string]*AgentHandle
	order   []string

	engine     *txengine.Engine
	population *population.Population
	ledger     *ledger.Ledger
	governor   *ratelimit.Governor
	feed       *marketdata.Feed
	tickCount  int

	manager   *system.Manager
	scheduler *scheduler.Scheduler
}

// SetMarketData attaches the shared MarketDataFeed the Supervisor polls for
// generate_for's market conditions on its evolution cadence. Passing nil
// disables the evolution job.
func (s *Supervisor) SetMarketData(feed *marketdata.Feed) {
	s.mu.Lock()
	s.feed = feed
	s.mu.Unlock()
}

// New constructs a Supervisor sharing the given core collaborators.
func New(engine *txengine.Engine, pop *population.Population, l *ledger.Ledger, governor *ratelimit.Governor, sched *scheduler.Scheduler) *Supervisor {
	return &Supervisor{
		handles:    make(map[string]*AgentHandle),
		engine:     engine,
		population: pop,
		ledger:     l,
		governor:   governor,
		manager:    system.NewManager(),
		scheduler:  sched,
	}
}

// Register adds an agent under the Supervisor's management. Agents start
// inactive; call Activate to begin ticking them.
func (s *Supervisor) Register(agent Tickable) *AgentHandle {
	handle := &AgentHandle{agent: agent}
	s.mu.Lock()
	s.handles[agent.Name()] = handle
	s.order = append(s.order, agent.Name())
	s.mu.Unlock()
	return handle
}

// Activate marks an agent active, so future ticks run its work.
func (s *Supervisor) Activate(name string) bool {
	s.mu.RLock()
	h, ok := s.handles[name]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	h.setActive(true)
	return true
}

// Deactivate marks an agent inactive. Its current tick (if any) completes
// normally; no further ticks are scheduled until reactivated.
func (s *Supervisor) Deactivate(name string) bool {
	s.mu.RLock()
	h, ok := s.handles[name]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	h.setActive(false)
	return true
}

// TickAll runs one cooperative tick across every registered agent,
// sequentially, never holding a lock across an agent's Tick call.
func (s *Supervisor) TickAll(ctx context.Context) {
	s.mu.RLock()
	names := append([]string(nil), s.order...)
	s.mu.RUnlock()

	for _, name := range names {
		s.mu.RLock()
		h := s.handles[name]
		s.mu.RUnlock()
		if h == nil {
			continue
		}
		_ = h.Tick(ctx)
	}

	s.evolveFromMarket()
}

// evolveFromMarket runs generate_for against the shared MarketDataFeed's
// current pair volumes/volatilities once every evolutionCadence ticks, the
// Supervisor's own periodic-evolution responsibility alongside the agents'
// reactive Evolve calls.
func (s *Supervisor) evolveFromMarket() {
	s.mu.Lock()
	feed := s.feed
	pop := s.population
	s.tickCount++
	due := feed != nil && pop != nil && s.tickCount%evolutionCadence == 0
	s.mu.Unlock()

	if !due {
		return
	}

	volumes := feed.PairVolumes()
	if len(volumes) == 0 {
		return
	}

	pop.GenerateFor(population.MarketConditions{
		PairVolumes:  volumes,
		Volatilities: feed.Volatilities(),
		MemeActivity: memeActivityFraction(volumes),
	})
}

// Snapshot reports the Supervisor's aggregate health view.
func (s *Supervisor) Snapshot() HealthSnapshot {
	s.mu.RLock()
	names := append([]string(nil), s.order...)
	s.mu.RUnlock()

	snap := HealthSnapshot{}
	if s.engine != nil {
		snap.RegisteredWallets = s.engine.Registered()
	}
	if s.population != nil {
		snap.PopulationSize = s.population.Size()
	}
	if s.governor != nil {
		snap.RateGovernor = s.governor.Summarize()
	}
	if s.ledger != nil {
		snap.TotalRealizedProfit = s.ledger.Total()
	}

	for _, name := range names {
		s.mu.RLock()
		h := s.handles[name]
		s.mu.RUnlock()
		if h == nil {
			continue
		}
		row := AgentSnapshot{Name: h.Name(), Active: h.Active()}
		if provider, ok := h.agent.(StatsProvider); ok {
			row.Executions, row.Successes = provider.ExecutionStats()
			snap.TotalExecutions += row.Executions
			snap.TotalSuccesses += row.Successes
		}
		snap.Agents = append(snap.Agents, row)
	}

	return snap
}

// Start wires the Supervisor into the lifecycle Manager and cron scheduler,
// then starts both.
func (s *Supervisor) Start(ctx context.Context, schedule string) error {
	if s.scheduler != nil {
		if err := s.scheduler.AddJob(schedule, tickJob{s}); err != nil {
			return err
		}
		s.scheduler.Start()
	}
	return s.manager.Start(ctx)
}

// Stop stops the cron scheduler and lifecycle manager.
func (s *Supervisor) Stop(ctx context.Context) error {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	return s.manager.Stop(ctx)
}

// Manager exposes the underlying lifecycle Manager so agents' own
// background services (if any) can be registered alongside the
// Supervisor.
func (s *Supervisor) Manager() *system.Manager { return s.manager }

// tickJob adapts the Supervisor to scheduler.Job.
type tickJob struct{ s *Supervisor }

func (j tickJob) Tick(ctx context.Context) error {
	j.s.TickAll(ctx)
	return nil
}

func (j tickJob) Name() string { return "supervisor-tick" }
