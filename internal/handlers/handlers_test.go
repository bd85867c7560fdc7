package handlers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/puckstats/shotrecorder/internal/config"
	"github.com/puckstats/shotrecorder/internal/dispatcher"
	"github.com/puckstats/shotrecorder/internal/logging"
	"github.com/puckstats/shotrecorder/internal/reconcile"
	"github.com/puckstats/shotrecorder/internal/roster"
	"github.com/puckstats/shotrecorder/internal/session"
	"github.com/puckstats/shotrecorder/internal/storage"
	"github.com/puckstats/shotrecorder/internal/tracker"
	"github.com/puckstats/shotrecorder/pkg/core"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var testStart = time.Date(2026, 2, 14, 18, 5, 9, 0, time.UTC)

// fakeBackend implements storage.Backend and keeps a copy of every write
type fakeBackend struct {
	mu    sync.Mutex
	saved []core.Session
}

func (b *fakeBackend) Init() error  { return nil }
func (b *fakeBackend) Close() error { return nil }

func (b *fakeBackend) SaveSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saved = append(b.saved, s.Clone())
	return nil
}

func (b *fakeBackend) writes() []core.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]core.Session(nil), b.saved...)
}

var _ storage.Backend = (*fakeBackend)(nil)

type harness struct {
	svc      *Service
	disp     *dispatcher.Dispatcher
	backend  *fakeBackend
	recorder *session.Recorder
	reader   *sdkmetric.ManualReader
}

func geometry() config.GeometryConfig {
	return config.GeometryConfig{
		BlueGoal:           core.Vec3{Y: 0.8, Z: -40.5},
		RedGoal:            core.Vec3{Y: 0.8, Z: 40.5},
		MinSpeed:           0.1,
		ConeDot:            0.5,
		ZoneRadius:         3.5,
		GoalCooldown:       15 * time.Second,
		ContactHistorySize: 8,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{backend: &fakeBackend{}, reader: sdkmetric.NewManualReader()}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(h.reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	h.recorder = session.NewRecorder("Rink 1", h.backend, session.WithClock(func() time.Time { return testStart }))

	svc, err := NewService(Dependencies{
		Geometry: geometry(),
		Recorder: h.recorder,
		Meter:    mp.Meter("handlers-test"),
		Now:      func() time.Time { return testStart.Add(time.Minute) },
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	h.svc = svc

	h.disp, err = dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	svc.Start(h.disp)

	h.send(t, CmdPlayerUpdate, `{"id":1,"username":"BlueSkater","number":17,"team":"Blue","role":"Attacker","hand":"Right","position":{"x":2,"y":0,"z":15}}`)
	h.send(t, CmdPlayerUpdate, `{"id":2,"username":"RedGoalie","number":35,"team":"Red","role":"Goalie","hand":"Left","position":{"x":0,"y":0,"z":39}}`)
	h.send(t, CmdPlayerUpdate, `{"id":3,"username":"RedDefence","number":4,"team":"Red","role":"Attacker"}`)
	return h
}

func (h *harness) send(t *testing.T, cmd, payload string) any {
	t.Helper()
	res, err := h.disp.Dispatch(dispatcher.Event{Command: cmd, Args: []string{payload}, Timestamp: testStart})
	require.NoError(t, err, "%s %s", cmd, payload)
	return res
}

func tickAt(simTime, z float64) string {
	return fmt.Sprintf(`{"simTime":%v,"game":{"phase":"Playing","period":2,"overtime":false},"puck":{"id":1,"position":{"x":0,"y":0,"z":%v},"velocity":{"x":0,"y":0,"z":18}}}`, simTime, z)
}

const releaseTowardRed = `{"simTime":10,"player":1,"puck":{"id":1,"position":{"x":0,"y":0.1,"z":20},"velocity":{"x":0,"y":0,"z":18},"shotSpeed":18}}`

// leaveZone ticks the puck into the red goal zone and out of it at simTime 13.
func (h *harness) leaveZone(t *testing.T) {
	t.Helper()
	for i, z := range []float64{30, 38, 45} {
		h.send(t, CmdTick, tickAt(11+float64(i), z))
	}
}

// driveThroughZone leaves the zone and ticks once more in the next step.
func (h *harness) driveThroughZone(t *testing.T) {
	t.Helper()
	h.leaveZone(t)
	h.send(t, CmdTick, tickAt(14, 46))
}

func (h *harness) counters(t *testing.T) map[string]map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))

	out := map[string]map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			byType := map[string]int64{}
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value("type")
				byType[v.AsString()] += dp.Value
			}
			out[m.Name] = byType
		}
	}
	return out
}

func TestNewService_RequiresRecorder(t *testing.T) {
	_, err := NewService(Dependencies{Logger: zerolog.Nop()})
	assert.Error(t, err)
}

func TestService_FirstTickStartsSession(t *testing.T) {
	h := newHarness(t)

	_, ok := h.recorder.Current()
	assert.False(t, ok)

	h.send(t, CmdTick, tickAt(1, 0))

	sess, ok := h.recorder.Current()
	require.True(t, ok)
	assert.Equal(t, "Rink 1", sess.ServerName)
	assert.Equal(t, testStart, sess.Start)
	assert.Empty(t, sess.Shots)
	assert.Empty(t, h.backend.writes(), "empty session is never written")
	assert.Equal(t, core.PhasePlaying, h.svc.Game().Phase)
}

func TestService_ShotLeavesZone(t *testing.T) {
	h := newHarness(t)
	h.send(t, CmdTick, tickAt(1, 0))
	h.send(t, CmdStickReleased, releaseTowardRed)

	tr, ok := h.svc.Tracker(1)
	require.True(t, ok)
	assert.Equal(t, tracker.Pending, tr.State())

	h.driveThroughZone(t)

	sess, _ := h.recorder.Current()
	require.Len(t, sess.Shots, 1)
	shot := sess.Shots[0]
	assert.Equal(t, core.ShotTypeShot, shot.Type)
	assert.Equal(t, core.TeamRed, shot.TargetGoal)
	assert.Equal(t, "BlueSkater", shot.Shooter.Name)
	assert.Equal(t, core.Vec3{X: 2, Z: 15}, shot.ShooterPosition)
	assert.Equal(t, 2, shot.Period)
	assert.Nil(t, shot.GoalieHitPosition)
	require.NotNil(t, shot.Goalie)
	assert.Equal(t, "RedGoalie", shot.Goalie.Name)
	assert.Equal(t, testStart.Add(time.Minute), shot.Timestamp)

	require.Len(t, h.backend.writes(), 1)
	assert.Equal(t, tracker.Idle, tr.State())
	assert.Equal(t, int64(1), h.counters(t)["shots.recorded"]["Shot"])
}

func TestService_GoalieHitIsShotOnGoal(t *testing.T) {
	h := newHarness(t)
	h.send(t, CmdTick, tickAt(1, 0))
	h.send(t, CmdStickReleased, releaseTowardRed)
	h.send(t, CmdCollision, `{"simTime":10.5,"puck":{"id":1,"position":{"x":0.2,"y":0.3,"z":38.9},"velocity":{"x":0,"y":0,"z":-4}},"other":{"kind":"body","owner":2}}`)
	h.driveThroughZone(t)

	sess, _ := h.recorder.Current()
	require.Len(t, sess.Shots, 1)
	shot := sess.Shots[0]
	assert.Equal(t, core.ShotTypeOnGoal, shot.Type)
	require.NotNil(t, shot.GoalieHitPosition)
	assert.Equal(t, core.Vec3{X: 0.2, Y: 0.3, Z: 38.9}, *shot.GoalieHitPosition)
	assert.Equal(t, int64(1), h.counters(t)["shots.recorded"]["Shot on Goal"])
}

func TestService_StickTouchClearsPendingShot(t *testing.T) {
	h := newHarness(t)
	h.send(t, CmdTick, tickAt(1, 0))
	h.send(t, CmdStickReleased, releaseTowardRed)
	h.send(t, CmdStickTouch, `{"simTime":10.2,"player":3,"puck":{"id":1,"position":{"x":0,"y":0,"z":25}}}`)

	tr, _ := h.svc.Tracker(1)
	assert.Equal(t, tracker.Idle, tr.State())

	h.driveThroughZone(t)
	sess, _ := h.recorder.Current()
	assert.Empty(t, sess.Shots)
}

func TestService_TouchInExitStepDiscardsShot(t *testing.T) {
	h := newHarness(t)
	h.send(t, CmdTick, tickAt(1, 0))
	h.send(t, CmdStickReleased, releaseTowardRed)
	h.leaveZone(t)

	tr, _ := h.svc.Tracker(1)
	assert.Equal(t, tracker.Held, tr.State())

	// the host reports the touch after the tick of the same step
	h.send(t, CmdStickTouch, `{"simTime":13,"player":3,"puck":{"id":1,"position":{"x":0,"y":0,"z":45}}}`)
	h.send(t, CmdTick, tickAt(14, 46))

	assert.Equal(t, tracker.Idle, tr.State())
	sess, _ := h.recorder.Current()
	assert.Empty(t, sess.Shots)
}

func TestService_TouchBeforeExitInSameStepDiscardsShot(t *testing.T) {
	h := newHarness(t)
	h.send(t, CmdTick, tickAt(1, 0))
	h.send(t, CmdStickReleased, releaseTowardRed)
	h.send(t, CmdTick, tickAt(11, 30))
	h.send(t, CmdTick, tickAt(12, 38))

	h.send(t, CmdStickTouch, `{"simTime":13,"player":3,"puck":{"id":1,"position":{"x":0,"y":0,"z":45}}}`)
	h.send(t, CmdTick, tickAt(13, 45))
	h.send(t, CmdTick, tickAt(14, 46))

	sess, _ := h.recorder.Current()
	assert.Empty(t, sess.Shots)
}

func TestService_TouchInLaterStepKeepsShot(t *testing.T) {
	h := newHarness(t)
	h.send(t, CmdTick, tickAt(1, 0))
	h.send(t, CmdStickReleased, releaseTowardRed)
	h.leaveZone(t)

	h.send(t, CmdStickTouch, `{"simTime":13.02,"player":3,"puck":{"id":1,"position":{"x":0,"y":0,"z":45}}}`)

	sess, _ := h.recorder.Current()
	require.Len(t, sess.Shots, 1)
	assert.Equal(t, core.ShotTypeShot, sess.Shots[0].Type)
}

func TestService_GoalUpgradesPendingShot(t *testing.T) {
	h := newHarness(t)
	h.send(t, CmdTick, tickAt(1, 0))
	h.send(t, CmdStickReleased, releaseTowardRed)

	goal := `{"simTime":%v,"goal":"Red","puck":{"id":1,"position":{"x":0,"y":0,"z":41},"velocity":{"x":0,"y":0,"z":9},"shotSpeed":18}}`
	assert.Equal(t, "upgraded", h.send(t, CmdGoalScored, fmt.Sprintf(goal, 100)))
	assert.Equal(t, "duplicate", h.send(t, CmdGoalScored, fmt.Sprintf(goal, 100.2)))

	sess, _ := h.recorder.Current()
	require.Len(t, sess.Shots, 1)
	assert.Equal(t, core.ShotTypeGoal, sess.Shots[0].Type)
	assert.Equal(t, core.Vec3{Y: 0.1, Z: 20}, sess.Shots[0].PuckPosition)

	c := h.counters(t)
	assert.Equal(t, int64(1), c["shots.recorded"]["Goal"])
	assert.Equal(t, int64(1), c["goals.suppressed"][""])
}

func TestService_GoalFallsBackToContactHistory(t *testing.T) {
	h := newHarness(t)
	h.send(t, CmdTick, tickAt(1, 0))
	// a touch by the attacker, no qualifying release
	h.send(t, CmdStickTouch, `{"simTime":5,"player":1,"puck":{"id":1,"position":{"x":0,"y":0,"z":38}}}`)
	h.send(t, CmdCollision, `{"simTime":5.5,"puck":{"id":1,"position":{"x":0,"y":0,"z":39}},"other":{"kind":"body","owner":2}}`)

	res := h.send(t, CmdGoalScored, `{"simTime":6,"goal":"Red","puck":{"id":1,"position":{"x":0,"y":0,"z":41},"velocity":{"x":0,"y":0,"z":3},"shotSpeed":12.5}}`)
	assert.Equal(t, "attributed", res)

	sess, _ := h.recorder.Current()
	require.Len(t, sess.Shots, 1)
	shot := sess.Shots[0]
	assert.Equal(t, "BlueSkater", shot.Shooter.Name)
	assert.Equal(t, 12.5, shot.ShotSpeed)
	assert.Equal(t, core.Vec3{Z: 1}, shot.Direction)
}

func TestService_FirstFaceOffRotatesSession(t *testing.T) {
	h := newHarness(t)
	h.send(t, CmdPhysics, `{"gravity":{"x":0,"y":-9.81,"z":0},"puckMass":0.17,"puckDrag":0.3,"puckAngularDrag":0.05,"maxSpeed":40,"maxAngularSpeed":50}`)
	h.send(t, CmdTick, tickAt(1, 0))
	h.send(t, CmdStickReleased, releaseTowardRed)
	h.driveThroughZone(t)

	first, _ := h.recorder.Current()
	require.Len(t, first.Shots, 1)
	require.NotNil(t, first.Physics)

	// a pending shot and contacts from the old game must not leak into the new one
	h.send(t, CmdStickReleased, releaseTowardRed)
	h.send(t, CmdGoalScored, `{"simTime":100,"goal":"Red","puck":{"id":1}}`)
	h.send(t, CmdStickReleased, releaseTowardRed)

	h.send(t, CmdPhaseChanged, `{"simTime":0,"game":{"phase":"FaceOff","period":1},"firstFaceOff":true}`)

	second, ok := h.recorder.Current()
	require.True(t, ok)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Empty(t, second.Shots)
	require.NotNil(t, second.Physics, "physics carried into the new session")
	assert.Equal(t, 0.17, second.Physics.PuckMass)

	writes := h.backend.writes()
	assert.Equal(t, first.ID, writes[len(writes)-1].ID, "old session flushed on rotation")

	tr, _ := h.svc.Tracker(1)
	assert.Equal(t, tracker.Idle, tr.State())

	// cooldown and contacts were reset: inside the old window, yet dropped rather than a duplicate
	assert.Equal(t, "dropped", h.send(t, CmdGoalScored, `{"simTime":101,"goal":"Red","puck":{"id":1}}`))
}

func TestService_PhaseChangeWithoutFirstFaceOffKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.send(t, CmdTick, tickAt(1, 0))
	before, _ := h.recorder.Current()

	h.send(t, CmdPhaseChanged, `{"simTime":50,"game":{"phase":"PeriodOver","period":1}}`)

	after, _ := h.recorder.Current()
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, core.PhasePeriodOver, h.svc.Game().Phase)
}

func TestService_PhysicsCapturedOnce(t *testing.T) {
	h := newHarness(t)
	h.send(t, CmdTick, tickAt(1, 0))
	h.send(t, CmdPhysics, `{"puckMass":0.17,"maxSpeed":40}`)
	h.send(t, CmdPhysics, `{"puckMass":9,"maxSpeed":1}`)

	sess, _ := h.recorder.Current()
	require.NotNil(t, sess.Physics)
	assert.Equal(t, 0.17, sess.Physics.PuckMass)
}

func TestService_ReplayPuckIgnored(t *testing.T) {
	h := newHarness(t)
	h.send(t, CmdTick, `{"simTime":1,"game":{"phase":"Replay","period":1},"puck":{"id":9,"replay":true}}`)
	h.send(t, CmdStickReleased, `{"player":1,"puck":{"id":9,"replay":true,"position":{"x":0,"y":0,"z":20},"velocity":{"x":0,"y":0,"z":18}}}`)

	assert.Equal(t, 0, h.svc.TrackedPucks())
	_, ok := h.recorder.Current()
	assert.True(t, ok, "a replay tick still starts the session")
}

func TestService_UnknownShooterSkipped(t *testing.T) {
	h := newHarness(t)
	h.send(t, CmdTick, tickAt(1, 0))
	h.send(t, CmdPlayerUpdate, `{"id":5,"username":"","number":null,"team":"Blue"}`)

	h.send(t, CmdStickReleased, `{"player":5,"puck":{"id":1,"position":{"x":0,"y":0,"z":20},"velocity":{"x":0,"y":0,"z":18}}}`)
	h.send(t, CmdStickReleased, `{"player":77,"puck":{"id":1,"position":{"x":0,"y":0,"z":20},"velocity":{"x":0,"y":0,"z":18}}}`)

	tr, _ := h.svc.Tracker(1)
	assert.Equal(t, tracker.Idle, tr.State())
}

func TestService_PlayerRemoved(t *testing.T) {
	h := newHarness(t)
	h.send(t, CmdPlayerRemoved, `{"id":1}`)
	h.send(t, CmdTick, tickAt(1, 0))
	h.send(t, CmdStickReleased, releaseTowardRed)

	tr, _ := h.svc.Tracker(1)
	assert.Equal(t, tracker.Idle, tr.State())
}

func TestService_PuckRemoved(t *testing.T) {
	h := newHarness(t)
	h.send(t, CmdTick, tickAt(1, 0))
	h.send(t, CmdStickReleased, releaseTowardRed)
	require.Equal(t, 1, h.svc.TrackedPucks())

	h.send(t, CmdPuckRemoved, `{"id":1}`)
	assert.Equal(t, 0, h.svc.TrackedPucks())

	// contact history went with it
	assert.Equal(t, "dropped", h.send(t, CmdGoalScored, `{"simTime":20,"goal":"Red","puck":{"id":1}}`))
}

func TestService_ShutdownFlushes(t *testing.T) {
	h := newHarness(t)
	h.send(t, CmdTick, tickAt(1, 0))
	assert.Equal(t, "flushed", h.send(t, CmdShutdown, "{}"))
	assert.Empty(t, h.backend.writes(), "nothing to flush")

	h.send(t, CmdStickReleased, releaseTowardRed)
	h.driveThroughZone(t)
	before := len(h.backend.writes())

	h.send(t, CmdShutdown, "{}")
	assert.Len(t, h.backend.writes(), before+1)
}

func TestService_ShutdownEmitsHeldShot(t *testing.T) {
	h := newHarness(t)
	h.send(t, CmdTick, tickAt(1, 0))
	h.send(t, CmdStickReleased, releaseTowardRed)
	h.leaveZone(t)

	sess, _ := h.recorder.Current()
	require.Empty(t, sess.Shots)

	h.send(t, CmdShutdown, "{}")

	sess, _ = h.recorder.Current()
	require.Len(t, sess.Shots, 1)
	writes := h.backend.writes()
	require.NotEmpty(t, writes)
	assert.Len(t, writes[len(writes)-1].Shots, 1)
}

func TestService_StopUnregisters(t *testing.T) {
	h := newHarness(t)
	assert.ElementsMatch(t, Commands(), h.disp.Commands())

	h.send(t, CmdTick, tickAt(1, 0))
	h.send(t, CmdStickReleased, releaseTowardRed)
	h.driveThroughZone(t)
	before := len(h.backend.writes())

	require.NoError(t, h.svc.Stop(h.disp))
	assert.Empty(t, h.disp.Commands())
	assert.Len(t, h.backend.writes(), before+1)
}

func TestService_BadPayloadIsAnError(t *testing.T) {
	h := newHarness(t)
	_, err := h.disp.Dispatch(dispatcher.Event{Command: CmdTick, Args: []string{"{"}})
	assert.Error(t, err)

	_, err = h.disp.Dispatch(dispatcher.Event{Command: CmdGoalScored})
	assert.Error(t, err)
}

// panicRoster blows up on every lookup
type panicRoster struct {
	*roster.Cache
}

func (panicRoster) Player(core.PlayerID) (core.Player, bool) { panic("roster offline") }

func TestService_RecoversFromPanics(t *testing.T) {
	rec := session.NewRecorder("Rink 1", &fakeBackend{})
	svc, err := NewService(Dependencies{
		Geometry: geometry(),
		Roster:   panicRoster{roster.NewCache()},
		Recorder: rec,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		svc.OnStickReleased(core.StickReleased{
			Puck:   core.PuckState{ID: 1, Position: core.Vec3{Z: 20}, Velocity: core.Vec3{Z: 18}},
			Player: 1,
		})
	})
	assert.NotPanics(t, func() {
		res := svc.OnGoalScored(core.GoalScored{Goal: core.TeamRed, Puck: core.PuckState{ID: 1}})
		assert.Equal(t, reconcile.Dropped, res)
	})
}
