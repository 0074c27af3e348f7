package mission

import (
	"context"
	"testing"
	"time"

	"github.com/fleetsense/fleettrack/core/fault"
	"github.com/fleetsense/fleettrack/core/model"
	"github.com/fleetsense/fleettrack/core/store"
	"github.com/fleetsense/fleettrack/infra/logger"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	s, err := New(Config{}, st, logger.NopLogger{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.SetClock(func() time.Time { return testNow })
	return s, st
}

func seed(t *testing.T, st store.Store, fn func(tx store.Tx) error) {
	t.Helper()
	if err := st.RunInTx(context.Background(), fn); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func getVehicle(t *testing.T, st store.Store, id string) model.Vehicle {
	t.Helper()
	var v model.Vehicle
	seed(t, st, func(tx store.Tx) error {
		var err error
		v, err = tx.Vehicles().Get(id)
		return err
	})
	return v
}

func getMission(t *testing.T, st store.Store, id string) model.Mission {
	t.Helper()
	var m model.Mission
	seed(t, st, func(tx store.Tx) error {
		var err error
		m, err = tx.Missions().Get(id)
		return err
	})
	return m
}

func validSpec() CreateSpec {
	return CreateSpec{
		Title:          "Airport shuttle",
		Priority:       model.PriorityMedium,
		Start:          model.GeoPoint{Lat: 48.8566, Lon: 2.3522},
		End:            model.GeoPoint{Lat: 49.0097, Lon: 2.5479},
		ScheduledStart: testNow.Add(time.Hour),
		ScheduledEnd:   testNow.Add(3 * time.Hour),
		OperatorID:     "op1",
		VehicleID:      "v1",
		CreatedByID:    "mgr1",
	}
}

func seedFleet(t *testing.T, st store.Store) {
	seed(t, st, func(tx store.Tx) error {
		if err := tx.Users().Put(model.User{ID: "op1", Name: "Alex", Role: model.RoleOperator}); err != nil {
			return err
		}
		return tx.Vehicles().Put(model.Vehicle{ID: "v1", LicensePlate: "AB-123-CD", Status: model.VehicleAvailable})
	})
}

func TestCreateClaimsVehicle(t *testing.T) {
	s, st := newTestService(t)
	seedFleet(t, st)

	m, err := s.Create(context.Background(), model.RoleManager, validSpec())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.Status != model.MissionPending {
		t.Fatalf("new mission must be pending, got %s", m.Status)
	}
	if v := getVehicle(t, st, "v1"); v.Status != model.VehicleInUse {
		t.Fatalf("vehicle must be claimed, got %s", v.Status)
	}
}

func TestCreateRejections(t *testing.T) {
	s, st := newTestService(t)
	seedFleet(t, st)

	if _, err := s.Create(context.Background(), model.RoleOperator, validSpec()); !fault.IsKind(err, fault.KindForbidden) {
		t.Fatalf("operator create: want forbidden, got %v", err)
	}

	sp := validSpec()
	sp.OperatorID = "ghost"
	if _, err := s.Create(context.Background(), model.RoleAdmin, sp); !fault.IsKind(err, fault.KindNotFound) {
		t.Fatalf("unknown operator: want not found, got %v", err)
	}

	sp = validSpec()
	sp.Start.Lat = 91
	if _, err := s.Create(context.Background(), model.RoleAdmin, sp); !fault.IsKind(err, fault.KindValidation) {
		t.Fatalf("bad coords: want validation, got %v", err)
	}

	sp = validSpec()
	sp.ScheduledEnd = sp.ScheduledStart
	if _, err := s.Create(context.Background(), model.RoleAdmin, sp); !fault.IsKind(err, fault.KindValidation) {
		t.Fatalf("empty window: want validation, got %v", err)
	}

	seed(t, st, func(tx store.Tx) error {
		return tx.Vehicles().Put(model.Vehicle{ID: "v1", Status: model.VehicleMaintenance})
	})
	if _, err := s.Create(context.Background(), model.RoleAdmin, validSpec()); !fault.IsKind(err, fault.KindVehicleUnavailable) {
		t.Fatalf("busy vehicle: want unavailable, got %v", err)
	}
}

func TestTwoMissionsCannotClaimOneVehicle(t *testing.T) {
	s, st := newTestService(t)
	seedFleet(t, st)

	if _, err := s.Create(context.Background(), model.RoleManager, validSpec()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := s.Create(context.Background(), model.RoleManager, validSpec()); !fault.IsKind(err, fault.KindVehicleUnavailable) {
		t.Fatalf("second create must fail, got %v", err)
	}
}

type fakeSim struct{ advanced []string }

func (f *fakeSim) Advance(_ context.Context, missionID string) error {
	f.advanced = append(f.advanced, missionID)
	return nil
}

func TestStart(t *testing.T) {
	s, st := newTestService(t)
	seedFleet(t, st)
	sim := &fakeSim{}
	s.SetSimulator(sim)

	created, err := s.Create(context.Background(), model.RoleManager, validSpec())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := s.Start(context.Background(), created.ID, "intruder"); !fault.IsKind(err, fault.KindForbidden) {
		t.Fatalf("foreign operator: want forbidden, got %v", err)
	}

	m, err := s.Start(context.Background(), created.ID, "op1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if m.Status != model.MissionInProgress || m.ActualStart == nil || !m.ActualStart.Equal(testNow) {
		t.Fatalf("unexpected mission after start: %+v", m)
	}

	// The trace must be anchored with a zero-speed sample at the start
	// coordinates, followed by one simulated advance.
	var trace []model.LocationSample
	seed(t, st, func(tx store.Tx) error {
		var err error
		trace, err = tx.Locations().ByMission(created.ID)
		return err
	})
	if len(trace) != 1 {
		t.Fatalf("want 1 anchor sample, got %d", len(trace))
	}
	anchor := trace[0]
	if anchor.Lat != created.Start.Lat || anchor.Lon != created.Start.Lon {
		t.Fatalf("anchor not at mission start: %+v", anchor)
	}
	if anchor.SpeedKmh == nil || *anchor.SpeedKmh != 0 {
		t.Fatalf("anchor speed must be zero, got %+v", anchor.SpeedKmh)
	}
	if len(sim.advanced) != 1 || sim.advanced[0] != created.ID {
		t.Fatalf("one simulated advance expected, got %v", sim.advanced)
	}

	if _, err := s.Start(context.Background(), created.ID, "op1"); !fault.IsKind(err, fault.KindInvalidState) {
		t.Fatalf("double start: want invalid state, got %v", err)
	}
}

func TestCompleteReleasesVehicle(t *testing.T) {
	s, st := newTestService(t)
	seedFleet(t, st)

	created, _ := s.Create(context.Background(), model.RoleManager, validSpec())
	if _, err := s.Complete(context.Background(), created.ID, "op1"); !fault.IsKind(err, fault.KindInvalidState) {
		t.Fatalf("completing a pending mission: want invalid state, got %v", err)
	}
	if _, err := s.Start(context.Background(), created.ID, "op1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	m, err := s.Complete(context.Background(), created.ID, "op1")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if m.Status != model.MissionCompleted || m.ActualEnd == nil {
		t.Fatalf("unexpected mission after complete: %+v", m)
	}
	if v := getVehicle(t, st, "v1"); v.Status != model.VehicleAvailable {
		t.Fatalf("vehicle must be released, got %s", v.Status)
	}
}

func TestCancel(t *testing.T) {
	s, st := newTestService(t)
	seedFleet(t, st)

	created, _ := s.Create(context.Background(), model.RoleManager, validSpec())
	if _, err := s.Cancel(context.Background(), created.ID, model.RoleOperator); !fault.IsKind(err, fault.KindForbidden) {
		t.Fatalf("operator cancel: want forbidden, got %v", err)
	}

	m, err := s.Cancel(context.Background(), created.ID, model.RoleAdmin)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if m.Status != model.MissionCancelled {
		t.Fatalf("want cancelled, got %s", m.Status)
	}
	if v := getVehicle(t, st, "v1"); v.Status != model.VehicleAvailable {
		t.Fatalf("vehicle must be released, got %s", v.Status)
	}

	// A second cancel fails without touching the vehicle.
	seed(t, st, func(tx store.Tx) error {
		return tx.Vehicles().Put(model.Vehicle{ID: "v1", Status: model.VehicleMaintenance})
	})
	if _, err := s.Cancel(context.Background(), created.ID, model.RoleAdmin); !fault.IsKind(err, fault.KindInvalidState) {
		t.Fatalf("second cancel: want invalid state, got %v", err)
	}
	if v := getVehicle(t, st, "v1"); v.Status != model.VehicleMaintenance {
		t.Fatalf("second cancel must not touch the vehicle, got %s", v.Status)
	}
}

func TestDelete(t *testing.T) {
	s, st := newTestService(t)
	seedFleet(t, st)

	created, _ := s.Create(context.Background(), model.RoleManager, validSpec())
	if _, err := s.Start(context.Background(), created.ID, "op1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Delete(context.Background(), created.ID, model.RoleManager); !fault.IsKind(err, fault.KindInvalidState) {
		t.Fatalf("deleting in-progress mission: want invalid state, got %v", err)
	}
	if _, err := s.Cancel(context.Background(), created.ID, model.RoleManager); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := s.Delete(context.Background(), created.ID, model.RoleManager); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	seed(t, st, func(tx store.Tx) error {
		if _, err := tx.Missions().Get(created.ID); !fault.IsKind(err, fault.KindNotFound) {
			t.Fatalf("mission must be gone, got %v", err)
		}
		return nil
	})

	// Deleting a pending mission releases its claim.
	created2, _ := s.Create(context.Background(), model.RoleManager, validSpec())
	if err := s.Delete(context.Background(), created2.ID, model.RoleAdmin); err != nil {
		t.Fatalf("Delete pending: %v", err)
	}
	if v := getVehicle(t, st, "v1"); v.Status != model.VehicleAvailable {
		t.Fatalf("vehicle must be released, got %s", v.Status)
	}
}

func TestStartRollsBackOnMissingVehicle(t *testing.T) {
	s, st := newTestService(t)
	seedFleet(t, st)

	created, _ := s.Create(context.Background(), model.RoleManager, validSpec())
	seed(t, st, func(tx store.Tx) error {
		return tx.Vehicles().Delete("v1")
	})
	if _, err := s.Start(context.Background(), created.ID, "op1"); !fault.IsKind(err, fault.KindNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	if m := getMission(t, st, created.ID); m.Status != model.MissionPending || m.ActualStart != nil {
		t.Fatalf("failed start must leave the mission untouched, got %+v", m)
	}
}

func TestUpdateReassignsVehicle(t *testing.T) {
	s, st := newTestService(t)
	seedFleet(t, st)
	seed(t, st, func(tx store.Tx) error {
		if err := tx.Vehicles().Put(model.Vehicle{ID: "v2", Status: model.VehicleAvailable}); err != nil {
			return err
		}
		return tx.Vehicles().Put(model.Vehicle{ID: "v3", Status: model.VehicleMaintenance})
	})

	created, _ := s.Create(context.Background(), model.RoleManager, validSpec())

	v3 := "v3"
	if _, err := s.Update(context.Background(), created.ID, model.RoleManager, UpdateSpec{VehicleID: &v3}); !fault.IsKind(err, fault.KindVehicleUnavailable) {
		t.Fatalf("reassignment to maintenance vehicle: want unavailable, got %v", err)
	}

	v2 := "v2"
	m, err := s.Update(context.Background(), created.ID, model.RoleManager, UpdateSpec{VehicleID: &v2})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if m.VehicleID != "v2" {
		t.Fatalf("want v2, got %s", m.VehicleID)
	}
	if v := getVehicle(t, st, "v1"); v.Status != model.VehicleAvailable {
		t.Fatalf("old vehicle must be released, got %s", v.Status)
	}
	if v := getVehicle(t, st, "v2"); v.Status != model.VehicleInUse {
		t.Fatalf("new vehicle must be claimed, got %s", v.Status)
	}
}

func TestUpdateStructuralFieldsOnlyWhilePending(t *testing.T) {
	s, st := newTestService(t)
	seedFleet(t, st)

	created, _ := s.Create(context.Background(), model.RoleManager, validSpec())
	if _, err := s.Start(context.Background(), created.ID, "op1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	p := model.PriorityUrgent
	if _, err := s.Update(context.Background(), created.ID, model.RoleAdmin, UpdateSpec{Priority: &p}); !fault.IsKind(err, fault.KindInvalidState) {
		t.Fatalf("structural edit on in-progress mission: want invalid state, got %v", err)
	}

	title := "Airport shuttle (revised)"
	m, err := s.Update(context.Background(), created.ID, model.RoleAdmin, UpdateSpec{Title: &title})
	if err != nil {
		t.Fatalf("metadata edit: %v", err)
	}
	if m.Title != title {
		t.Fatalf("title not updated: %q", m.Title)
	}
}

func TestUpdateReassignsVehicleWhileInProgress(t *testing.T) {
	s, st := newTestService(t)
	seedFleet(t, st)
	seed(t, st, func(tx store.Tx) error {
		return tx.Vehicles().Put(model.Vehicle{ID: "v2", Status: model.VehicleMaintenance})
	})

	created, _ := s.Create(context.Background(), model.RoleManager, validSpec())
	if _, err := s.Start(context.Background(), created.ID, "op1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Once the mission left pending, availability no longer gates the swap.
	v2 := "v2"
	m, err := s.Update(context.Background(), created.ID, model.RoleManager, UpdateSpec{VehicleID: &v2})
	if err != nil {
		t.Fatalf("in-progress reassignment: %v", err)
	}
	if m.VehicleID != "v2" {
		t.Fatalf("want v2, got %s", m.VehicleID)
	}
	if v := getVehicle(t, st, "v1"); v.Status != model.VehicleAvailable {
		t.Fatalf("old vehicle must be released, got %s", v.Status)
	}
	if v := getVehicle(t, st, "v2"); v.Status != model.VehicleMaintenance {
		t.Fatalf("maintenance vehicle must keep its status, got %s", v.Status)
	}

	if _, err := s.Complete(context.Background(), created.ID, "op1"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	v1 := "v1"
	if _, err := s.Update(context.Background(), created.ID, model.RoleManager, UpdateSpec{VehicleID: &v1}); !fault.IsKind(err, fault.KindInvalidState) {
		t.Fatalf("reassignment on completed mission: want invalid state, got %v", err)
	}
}

func TestUpdateReassignPolicyEnforcesAvailability(t *testing.T) {
	st := store.NewMemory()
	s, err := New(Config{CheckReassignAvailability: true}, st, logger.NopLogger{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.SetClock(func() time.Time { return testNow })
	seedFleet(t, st)
	seed(t, st, func(tx store.Tx) error {
		return tx.Vehicles().Put(model.Vehicle{ID: "v2", Status: model.VehicleMaintenance})
	})

	created, _ := s.Create(context.Background(), model.RoleManager, validSpec())
	if _, err := s.Start(context.Background(), created.ID, "op1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	v2 := "v2"
	if _, err := s.Update(context.Background(), created.ID, model.RoleManager, UpdateSpec{VehicleID: &v2}); !fault.IsKind(err, fault.KindVehicleUnavailable) {
		t.Fatalf("policy on: want unavailable, got %v", err)
	}
	if m := getMission(t, st, created.ID); m.VehicleID != "v1" {
		t.Fatalf("mission must keep its vehicle, got %s", m.VehicleID)
	}
}

func TestReconcile(t *testing.T) {
	s, st := newTestService(t)
	seed(t, st, func(tx store.Tx) error {
		// Stuck: in_use with no active mission.
		if err := tx.Vehicles().Put(model.Vehicle{ID: "stuck", Status: model.VehicleInUse}); err != nil {
			return err
		}
		// Healthy claim.
		if err := tx.Vehicles().Put(model.Vehicle{ID: "busy", Status: model.VehicleInUse}); err != nil {
			return err
		}
		if err := tx.Missions().Put(model.Mission{ID: "m1", Status: model.MissionInProgress, VehicleID: "busy"}); err != nil {
			return err
		}
		// Double-assigned.
		if err := tx.Vehicles().Put(model.Vehicle{ID: "contested", Status: model.VehicleInUse}); err != nil {
			return err
		}
		if err := tx.Missions().Put(model.Mission{ID: "m2", Status: model.MissionPending, VehicleID: "contested"}); err != nil {
			return err
		}
		return tx.Missions().Put(model.Mission{ID: "m3", Status: model.MissionInProgress, VehicleID: "contested"})
	})

	rep, err := s.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(rep.Released) != 1 || rep.Released[0] != "stuck" {
		t.Fatalf("want [stuck] released, got %v", rep.Released)
	}
	if got := rep.Conflicts["contested"]; len(got) != 2 {
		t.Fatalf("contested must be flagged with 2 missions, got %v", rep.Conflicts)
	}
	if v := getVehicle(t, st, "stuck"); v.Status != model.VehicleAvailable {
		t.Fatalf("stuck vehicle must be released, got %s", v.Status)
	}
	if v := getVehicle(t, st, "busy"); v.Status != model.VehicleInUse {
		t.Fatalf("healthy claim must be kept, got %s", v.Status)
	}
	if v := getVehicle(t, st, "contested"); v.Status != model.VehicleInUse {
		t.Fatalf("conflicts must never be auto-fixed, got %s", v.Status)
	}

	// Idempotence: a second pass finds nothing new to release.
	rep2, err := s.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if len(rep2.Released) != 0 {
		t.Fatalf("second pass must release nothing, got %v", rep2.Released)
	}
	if len(rep2.Conflicts) != 1 {
		t.Fatalf("conflict must still be reported, got %v", rep2.Conflicts)
	}
}
