package mission

import (
	"context"

	"github.com/fleetsense/fleettrack/core/model"
	"github.com/fleetsense/fleettrack/core/store"
)

// ReconcileReport describes what a reconciliation pass found.
type ReconcileReport struct {
	// Released lists vehicles that were in_use with no active mission and
	// were set back to available.
	Released []string
	// Conflicts maps a vehicle to the active missions that all claim it.
	// Conflicts are reported, never repaired automatically.
	Conflicts map[string][]string
}

// Reconcile repairs vehicle-status drift. A vehicle stuck in_use without a
// pending or in-progress mission is released; a vehicle claimed by several
// active missions is flagged and left alone. The pass is idempotent.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	now := s.now()
	rep := ReconcileReport{Conflicts: map[string][]string{}}
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		rep.Released = rep.Released[:0]
		clear(rep.Conflicts)
		vehicles, err := tx.Vehicles().List()
		if err != nil {
			return err
		}
		for _, v := range vehicles {
			active, err := tx.Missions().ActiveByVehicle(v.ID)
			if err != nil {
				return err
			}
			if len(active) > 1 {
				ids := make([]string, 0, len(active))
				for _, m := range active {
					ids = append(ids, m.ID)
				}
				rep.Conflicts[v.ID] = ids
				continue
			}
			if v.Status == model.VehicleInUse && len(active) == 0 {
				v.Status = model.VehicleAvailable
				v.UpdatedAt = now
				if err := tx.Vehicles().Put(v); err != nil {
					return err
				}
				rep.Released = append(rep.Released, v.ID)
			}
		}
		return nil
	})
	if err != nil {
		return ReconcileReport{}, err
	}
	for vid, missions := range rep.Conflicts {
		s.log.Warnf("vehicle %s claimed by %d active missions %v", vid, len(missions), missions)
	}
	if len(rep.Released) > 0 {
		s.log.Infof("reconcile released %d stuck vehicles", len(rep.Released))
	}
	return rep, nil
}
