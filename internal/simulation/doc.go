// Package simulation provides a multi-day test harness for validating the
// emergent dynamics of the epidemic replay.
//
// The harness exercises the real config, replay, policy and SQLite store
// packages with no mocks. Scenarios are Go builders that construct a
// synthetic town and a validated configuration, run it for a number of
// days and read every day back from the run database for property-based
// assertions.
//
// Each test gets an isolated SQLite database via t.TempDir() and a
// sandboxed HOME so user data is never touched.
//
// Usage:
//
//	func TestLockdownFlattensCurve(t *testing.T) {
//	    cfg, _ := config.NewBuilder().Iterations(60).Build()
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:   "lockdown",
//	        Town:   simulation.TownSpec{Households: 50, HouseholdSize: 3, Workplaces: 4},
//	        Config: cfg,
//	    })
//	    simulation.AssertPopulationConserved(t, result)
//	}
package simulation
