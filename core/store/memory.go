package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fleetsense/fleettrack/core/fault"
	"github.com/fleetsense/fleettrack/core/model"
)

// Memory is an in-process Store. Transactions serialize on one mutex and
// stage writes in overlays, so a failed unit of work leaves no trace.
type Memory struct {
	mu        sync.Mutex
	vehicles  map[string]model.Vehicle
	missions  map[string]model.Mission
	users     map[string]model.User
	samples   []model.LocationSample
	anomalies map[string]model.Anomaly
	// anomalyIDs preserves insertion order for listings.
	anomalyIDs []string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		vehicles:  map[string]model.Vehicle{},
		missions:  map[string]model.Mission{},
		users:     map[string]model.User{},
		anomalies: map[string]model.Anomaly{},
	}
}

// RunInTx implements Store.
func (m *Memory) RunInTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := newMemTx(m)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memTx struct {
	s *Memory

	vehiclePut map[string]model.Vehicle
	vehicleDel map[string]bool
	missionPut map[string]model.Mission
	missionDel map[string]bool
	userPut    map[string]model.User
	sampleAdd  []model.LocationSample
	pruneTo    *time.Time
	anomPut    map[string]model.Anomaly
	anomAdd    []string
}

func newMemTx(s *Memory) *memTx {
	return &memTx{
		s:          s,
		vehiclePut: map[string]model.Vehicle{},
		vehicleDel: map[string]bool{},
		missionPut: map[string]model.Mission{},
		missionDel: map[string]bool{},
		userPut:    map[string]model.User{},
		anomPut:    map[string]model.Anomaly{},
	}
}

func (t *memTx) commit() {
	s := t.s
	for id, v := range t.vehiclePut {
		s.vehicles[id] = v
	}
	for id := range t.vehicleDel {
		delete(s.vehicles, id)
	}
	for id, m := range t.missionPut {
		s.missions[id] = m
	}
	for id := range t.missionDel {
		delete(s.missions, id)
	}
	for id, u := range t.userPut {
		s.users[id] = u
	}
	if t.pruneTo != nil {
		kept := s.samples[:0]
		for _, sm := range s.samples {
			if !sm.Timestamp.Before(*t.pruneTo) {
				kept = append(kept, sm)
			}
		}
		s.samples = kept
	}
	s.samples = append(s.samples, t.sampleAdd...)
	for _, id := range t.anomAdd {
		s.anomalyIDs = append(s.anomalyIDs, id)
	}
	for id, a := range t.anomPut {
		s.anomalies[id] = a
	}
}

func (t *memTx) Vehicles() VehicleRepo   { return (*memVehicles)(t) }
func (t *memTx) Missions() MissionRepo   { return (*memMissions)(t) }
func (t *memTx) Locations() LocationRepo { return (*memLocations)(t) }
func (t *memTx) Anomalies() AnomalyRepo  { return (*memAnomalies)(t) }
func (t *memTx) Users() UserRepo         { return (*memUsers)(t) }

type memVehicles memTx

func (r *memVehicles) Get(id string) (model.Vehicle, error) {
	if r.vehicleDel[id] {
		return model.Vehicle{}, fault.NotFound("vehicle %s not found", id)
	}
	if v, ok := r.vehiclePut[id]; ok {
		return v, nil
	}
	if v, ok := r.s.vehicles[id]; ok {
		return v, nil
	}
	return model.Vehicle{}, fault.NotFound("vehicle %s not found", id)
}

func (r *memVehicles) Put(v model.Vehicle) error {
	delete(r.vehicleDel, v.ID)
	r.vehiclePut[v.ID] = v
	return nil
}

func (r *memVehicles) List() ([]model.Vehicle, error) {
	seen := map[string]bool{}
	var out []model.Vehicle
	for id, v := range r.vehiclePut {
		seen[id] = true
		out = append(out, v)
	}
	for id, v := range r.s.vehicles {
		if seen[id] || r.vehicleDel[id] {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memVehicles) Delete(id string) error {
	if _, err := r.Get(id); err != nil {
		return err
	}
	delete(r.vehiclePut, id)
	r.vehicleDel[id] = true
	return nil
}

type memMissions memTx

func (r *memMissions) Get(id string) (model.Mission, error) {
	if r.missionDel[id] {
		return model.Mission{}, fault.NotFound("mission %s not found", id)
	}
	if m, ok := r.missionPut[id]; ok {
		return m, nil
	}
	if m, ok := r.s.missions[id]; ok {
		return m, nil
	}
	return model.Mission{}, fault.NotFound("mission %s not found", id)
}

func (r *memMissions) Put(m model.Mission) error {
	delete(r.missionDel, m.ID)
	r.missionPut[m.ID] = m
	return nil
}

func (r *memMissions) List() ([]model.Mission, error) {
	seen := map[string]bool{}
	var out []model.Mission
	for id, m := range r.missionPut {
		seen[id] = true
		out = append(out, m)
	}
	for id, m := range r.s.missions {
		if seen[id] || r.missionDel[id] {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memMissions) ListByStatus(s model.MissionStatus) ([]model.Mission, error) {
	all, _ := r.List()
	out := all[:0]
	for _, m := range all {
		if m.Status == s {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMissions) ActiveByVehicle(vehicleID string) ([]model.Mission, error) {
	all, _ := r.List()
	var out []model.Mission
	for _, m := range all {
		if m.VehicleID != vehicleID {
			continue
		}
		if m.Status == model.MissionPending || m.Status == model.MissionInProgress {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMissions) Delete(id string) error {
	if _, err := r.Get(id); err != nil {
		return err
	}
	delete(r.missionPut, id)
	r.missionDel[id] = true
	return nil
}

type memLocations memTx

func (r *memLocations) Append(s model.LocationSample) error {
	r.sampleAdd = append(r.sampleAdd, s)
	return nil
}

// visible returns base plus staged samples, honoring a staged prune.
func (r *memLocations) visible() []model.LocationSample {
	out := make([]model.LocationSample, 0, len(r.s.samples)+len(r.sampleAdd))
	for _, sm := range r.s.samples {
		if r.pruneTo != nil && sm.Timestamp.Before(*r.pruneTo) {
			continue
		}
		out = append(out, sm)
	}
	return append(out, r.sampleAdd...)
}

func (r *memLocations) LatestByVehicle(vehicleID string) (model.LocationSample, bool, error) {
	var best model.LocationSample
	found := false
	for _, sm := range r.visible() {
		if sm.VehicleID != vehicleID {
			continue
		}
		if !found || sm.Timestamp.After(best.Timestamp) {
			best = sm
			found = true
		}
	}
	return best, found, nil
}

func (r *memLocations) RecentByVehicle(vehicleID string, since time.Time, limit int) ([]model.LocationSample, error) {
	var out []model.LocationSample
	for _, sm := range r.visible() {
		if sm.VehicleID == vehicleID && !sm.Timestamp.Before(since) {
			out = append(out, sm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memLocations) ByMission(missionID string) ([]model.LocationSample, error) {
	var out []model.LocationSample
	for _, sm := range r.visible() {
		if sm.MissionID == missionID {
			out = append(out, sm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r *memLocations) DeleteOlderThan(t time.Time) (int, error) {
	n := 0
	for _, sm := range r.visible() {
		if sm.Timestamp.Before(t) {
			n++
		}
	}
	cut := t
	r.pruneTo = &cut
	kept := r.sampleAdd[:0]
	for _, sm := range r.sampleAdd {
		if !sm.Timestamp.Before(t) {
			kept = append(kept, sm)
		}
	}
	r.sampleAdd = kept
	return n, nil
}

type memAnomalies memTx

func (r *memAnomalies) Append(a model.Anomaly) error {
	r.anomAdd = append(r.anomAdd, a.ID)
	r.anomPut[a.ID] = a
	return nil
}

func (r *memAnomalies) Get(id string) (model.Anomaly, error) {
	if a, ok := r.anomPut[id]; ok {
		return a, nil
	}
	if a, ok := r.s.anomalies[id]; ok {
		return a, nil
	}
	return model.Anomaly{}, fault.NotFound("anomaly %s not found", id)
}

func (r *memAnomalies) Put(a model.Anomaly) error {
	if _, err := r.Get(a.ID); err != nil {
		return err
	}
	r.anomPut[a.ID] = a
	return nil
}

func (r *memAnomalies) List(f AnomalyFilter) ([]model.Anomaly, error) {
	ids := make([]string, 0, len(r.s.anomalyIDs)+len(r.anomAdd))
	ids = append(ids, r.s.anomalyIDs...)
	ids = append(ids, r.anomAdd...)
	var out []model.Anomaly
	for _, id := range ids {
		a, err := r.Get(id)
		if err != nil {
			continue
		}
		if f.VehicleID != "" && a.VehicleID != f.VehicleID {
			continue
		}
		if f.MissionID != "" && a.MissionID != f.MissionID {
			continue
		}
		if f.Severity != nil && a.Severity != *f.Severity {
			continue
		}
		if !f.Since.IsZero() && a.DetectedAt.Before(f.Since) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	return out, nil
}

type memUsers memTx

func (r *memUsers) Get(id string) (model.User, error) {
	if u, ok := r.userPut[id]; ok {
		return u, nil
	}
	if u, ok := r.s.users[id]; ok {
		return u, nil
	}
	return model.User{}, fault.NotFound("user %s not found", id)
}

func (r *memUsers) Put(u model.User) error {
	r.userPut[u.ID] = u
	return nil
}
