package txengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/r3e-network/flashcore/internal/logging"
)

// compensationFunc undoes the effect of a previously-run step.
type compensationFunc func(ctx context.Context) error

// step is one named, compensable unit of a saga.
type step struct {
	name         string
	action       func(ctx context.Context) error
	compensation compensationFunc
}

// saga is a small step-runner: steps run in order, and on failure every
// already-run step's compensation runs in reverse.
type saga struct {
	mu    sync.Mutex
	steps []step
	log   *logging.Logger
}

func newSaga(log *logging.Logger) *saga {
	return &saga{log: log}
}

func (s *saga) addStep(name string, action func(ctx context.Context) error, compensation compensationFunc) *saga {
	s.steps = append(s.steps, step{name: name, action: action, compensation: compensation})
	return s
}

// run executes every step in order. On the first failure it rolls back all
// previously-run steps (reverse order) and returns the failing step's error
// wrapped with its name.
func (s *saga) run(ctx context.Context) error {
	ran := 0
	for _, st := range s.steps {
		if err := st.action(ctx); err != nil {
			s.rollback(ctx, ran)
			return fmt.Errorf("%s: %w", st.name, err)
		}
		ran++
	}
	return nil
}

func (s *saga) rollback(ctx context.Context, ran int) {
	for i := ran - 1; i >= 0; i-- {
		st := s.steps[i]
		if st.compensation == nil {
			continue
		}
		if err := st.compensation(ctx); err != nil && s.log != nil {
			s.log.WithFields(map[string]interface{}{
				"step":  st.name,
				"error": err,
			}).Error("saga compensation failed")
		}
	}
}
