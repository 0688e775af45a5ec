package stokvel

import (
	"context"

	"go.uber.org/zap"

	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// CYCLE SERVICE - Operating cycles and the current-cycle pointer
// =============================================================================

type CycleService struct {
	*base
}

// Create adds a planned cycle. Cycles of one stokvel may not overlap,
// cancelled ones excepted.
func (s *CycleService) Create(ctx context.Context, c finance.Cycle) (finance.Cycle, error) {
	if c.ID == "" {
		c.ID = finance.CycleID(s.newID())
	}
	if c.Status == "" {
		c.Status = finance.CyclePlanned
	}
	c.CreatedAt = s.now()
	if err := c.Validate(); err != nil {
		return finance.Cycle{}, err
	}
	err := s.store.WithTx(ctx, func(tx finance.Store) error {
		if _, err := tx.GetStokvel(ctx, c.StokvelID); err != nil {
			return err
		}
		existing, err := tx.ListCycles(ctx, c.StokvelID)
		if err != nil {
			return err
		}
		for _, o := range existing {
			if o.Overlaps(c) {
				return &finance.ValidationError{Field: "start_date", Message: "cycle overlaps " + o.Name}
			}
		}
		return tx.CreateCycle(ctx, c)
	})
	if err != nil {
		return finance.Cycle{}, err
	}
	return c, nil
}

// Activate makes id the stokvel's current cycle. Any other active cycle is
// completed in the same transaction.
func (s *CycleService) Activate(ctx context.Context, id finance.CycleID) (finance.Cycle, error) {
	var out finance.Cycle
	err := s.store.WithTx(ctx, func(tx finance.Store) error {
		c, err := tx.GetCycle(ctx, id)
		if err != nil {
			return err
		}
		if c.Status == finance.CycleCancelled || c.Status == finance.CycleCompleted {
			return &finance.TransitionError{Entity: "cycle", From: string(c.Status), To: string(finance.CycleActive)}
		}
		others, err := tx.ListCycles(ctx, c.StokvelID)
		if err != nil {
			return err
		}
		for _, o := range others {
			if o.ID == c.ID || o.Status != finance.CycleActive {
				continue
			}
			o.Status = finance.CycleCompleted
			if err := tx.UpdateCycle(ctx, o); err != nil {
				return err
			}
		}
		c.Status = finance.CycleActive
		if err := tx.UpdateCycle(ctx, c); err != nil {
			return err
		}
		sv, err := tx.GetStokvel(ctx, c.StokvelID)
		if err != nil {
			return err
		}
		sv.CurrentCycleID = &c.ID
		out = c
		return tx.UpdateStokvel(ctx, sv)
	})
	if err != nil {
		return finance.Cycle{}, err
	}
	s.log.Info("cycle activated", zap.String("stokvel_id", string(out.StokvelID)), zap.String("cycle_id", string(out.ID)))
	return out, nil
}

func (s *CycleService) Complete(ctx context.Context, id finance.CycleID) (finance.Cycle, error) {
	return s.finish(ctx, id, finance.CycleCompleted)
}

func (s *CycleService) Cancel(ctx context.Context, id finance.CycleID) (finance.Cycle, error) {
	return s.finish(ctx, id, finance.CycleCancelled)
}

// finish moves a cycle to a terminal status and clears the current pointer
// if it pointed at it.
func (s *CycleService) finish(ctx context.Context, id finance.CycleID, to finance.CycleStatus) (finance.Cycle, error) {
	var out finance.Cycle
	err := s.store.WithTx(ctx, func(tx finance.Store) error {
		c, err := tx.GetCycle(ctx, id)
		if err != nil {
			return err
		}
		if c.Status == finance.CycleCancelled || c.Status == finance.CycleCompleted {
			return &finance.TransitionError{Entity: "cycle", From: string(c.Status), To: string(to)}
		}
		c.Status = to
		if err := tx.UpdateCycle(ctx, c); err != nil {
			return err
		}
		sv, err := tx.GetStokvel(ctx, c.StokvelID)
		if err != nil {
			return err
		}
		out = c
		if sv.CurrentCycleID != nil && *sv.CurrentCycleID == c.ID {
			sv.CurrentCycleID = nil
			return tx.UpdateStokvel(ctx, sv)
		}
		return nil
	})
	return out, err
}

func (s *CycleService) List(ctx context.Context, stokvelID finance.StokvelID) ([]finance.Cycle, error) {
	return s.store.ListCycles(ctx, stokvelID)
}

// Current returns the stokvel's current cycle, if any.
func (s *CycleService) Current(ctx context.Context, stokvelID finance.StokvelID) (finance.Cycle, bool, error) {
	sv, err := s.store.GetStokvel(ctx, stokvelID)
	if err != nil || sv.CurrentCycleID == nil {
		return finance.Cycle{}, false, err
	}
	c, err := s.store.GetCycle(ctx, *sv.CurrentCycleID)
	if err != nil {
		return finance.Cycle{}, false, err
	}
	return c, true, nil
}
