package versions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/viralrisk/internal/config/risk"
)

// Arm identifies one side of an A/B test
type Arm string

const (
	ArmA Arm = "A"
	ArmB Arm = "B"
)

// ErrABTestStopped is returned when resolving a closed test
var ErrABTestStopped = errors.New("ab test is not active")

// ArmCounters counts subjects assigned to each arm
type ArmCounters struct {
	A int64 `json:"a"`
	B int64 `json:"b"`
}

// ABTest is a live comparison of two configurations
type ABTest struct {
	ID           string      `json:"testId"`
	Name         string      `json:"name"`
	ConfigA      risk.Config `json:"configA"`
	ConfigB      risk.Config `json:"configB"`
	TrafficSplit float64     `json:"trafficSplit"`
	StartedAt    time.Time   `json:"startedAt"`
	StoppedAt    *time.Time  `json:"stoppedAt,omitempty"`
	IsActive     bool        `json:"isActive"`
	Assigned     ArmCounters `json:"assigned"`
}

// abState pairs the stored record with in-process assignment counters
type abState struct {
	test     atomic.Pointer[ABTest]
	loadedAt atomic.Int64
	a, b     atomic.Int64
}

// StartABTest validates both arms and stores a new active test
func (m *Manager) StartABTest(ctx context.Context, configA, configB risk.Config, name string, split float64) (string, error) {
	var problems []string
	if split < 0 || split > 1 {
		problems = append(problems, fmt.Sprintf("trafficSplit %.3f outside [0,1]", split))
	}
	for _, arm := range []struct {
		label string
		cfg   risk.Config
	}{{"configA", configA}, {"configB", configB}} {
		var ve *risk.ValidationError
		if err := arm.cfg.Validate(); errors.As(err, &ve) {
			for _, p := range ve.Problems {
				problems = append(problems, arm.label+": "+p)
			}
		}
	}
	if len(problems) > 0 {
		return "", &risk.ValidationError{Problems: problems}
	}

	t := ABTest{
		ID:           uuid.NewString(),
		Name:         name,
		ConfigA:      configA.Clone(),
		ConfigB:      configB.Clone(),
		TrafficSplit: split,
		StartedAt:    m.now().UTC(),
		IsActive:     true,
	}
	if err := m.writeABTest(ctx, t); err != nil {
		return "", err
	}
	if err := m.store.ListAppend(ctx, keyABTestIndex, t.ID); err != nil {
		return "", fmt.Errorf("failed to index ab test: %w", err)
	}
	m.cacheABTest(t)

	log.Info().Str("test_id", t.ID).Str("name", name).Float64("split", split).Msg("AB test started")
	m.emit(Event{Type: EventABTestStarted, TestID: t.ID, At: t.StartedAt})
	return t.ID, nil
}

// ResolveABTest picks the configuration for a subject. A non-empty subject
// id always maps to the same arm; an empty one is drawn uniformly.
func (m *Manager) ResolveABTest(ctx context.Context, testID, subjectID string) (risk.Config, Arm, error) {
	st, err := m.abState(ctx, testID)
	if err != nil {
		return risk.Config{}, "", err
	}
	t := st.test.Load()
	if !t.IsActive {
		return risk.Config{}, "", ErrABTestStopped
	}

	arm := AssignArm(subjectID, t.TrafficSplit)
	if arm == ArmA {
		st.a.Add(1)
		return t.ConfigA.Clone(), ArmA, nil
	}
	st.b.Add(1)
	return t.ConfigB.Clone(), ArmB, nil
}

// AssignArm maps a subject to an arm for the given share of traffic on A
func AssignArm(subjectID string, split float64) Arm {
	var draw float64
	if subjectID == "" {
		draw = rand.Float64()
	} else {
		draw = SubjectHash(subjectID)
	}
	if draw < split {
		return ArmA
	}
	return ArmB
}

// SubjectHash returns a stable, uniformly spread value in [0,1) for id
func SubjectHash(id string) float64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return float64(fmix64(h.Sum64())>>11) / (1 << 53)
}

// fmix64 is the murmur3 finaliser
func fmix64(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33
	return k
}

// StopABTest closes a test and persists its assignment counts
func (m *Manager) StopABTest(ctx context.Context, testID string) (ABTest, error) {
	st, err := m.abState(ctx, testID)
	if err != nil {
		return ABTest{}, err
	}
	stored, err := m.readABTest(ctx, testID)
	if err != nil {
		return ABTest{}, err
	}
	if !stored.IsActive {
		return stored, nil
	}

	at := m.now().UTC()
	stored.IsActive = false
	stored.StoppedAt = &at
	stored.Assigned.A += st.a.Swap(0)
	stored.Assigned.B += st.b.Swap(0)

	if err := m.writeABTest(ctx, stored); err != nil {
		return ABTest{}, err
	}
	m.cacheABTest(stored)

	log.Info().
		Str("test_id", testID).
		Int64("assigned_a", stored.Assigned.A).
		Int64("assigned_b", stored.Assigned.B).
		Msg("AB test stopped")
	m.emit(Event{Type: EventABTestStopped, TestID: testID, At: at})
	return stored, nil
}

// ABTestStats returns the stored record with live in-process counts added
func (m *Manager) ABTestStats(ctx context.Context, testID string) (ABTest, error) {
	st, err := m.abState(ctx, testID)
	if err != nil {
		return ABTest{}, err
	}
	t := *st.test.Load()
	t.Assigned.A += st.a.Load()
	t.Assigned.B += st.b.Load()
	return t, nil
}

// ListABTests returns test ids in creation order
func (m *Manager) ListABTests(ctx context.Context) ([]string, error) {
	ids, err := m.store.ListRange(ctx, keyABTestIndex, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("failed to read ab test index: %w", err)
	}
	return ids, nil
}

// abState returns the cached test, reloading the record once the cache
// TTL has passed so stops made elsewhere are observed.
func (m *Manager) abState(ctx context.Context, testID string) (*abState, error) {
	if v, ok := m.tests.Load(testID); ok {
		st := v.(*abState)
		if m.now().Sub(time.Unix(0, st.loadedAt.Load())) < m.ttl {
			return st, nil
		}
		t, err := m.readABTest(ctx, testID)
		if err != nil {
			return nil, err
		}
		st.test.Store(&t)
		st.loadedAt.Store(m.now().UnixNano())
		return st, nil
	}

	t, err := m.readABTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	return m.cacheABTest(t), nil
}

func (m *Manager) cacheABTest(t ABTest) *abState {
	fresh := &abState{}
	v, _ := m.tests.LoadOrStore(t.ID, fresh)
	st := v.(*abState)
	st.test.Store(&t)
	st.loadedAt.Store(m.now().UnixNano())
	return st
}

func (m *Manager) readABTest(ctx context.Context, testID string) (ABTest, error) {
	data, found, err := m.store.Get(ctx, abTestKey(testID))
	if err != nil {
		return ABTest{}, fmt.Errorf("failed to read ab test %s: %w", testID, err)
	}
	if !found {
		return ABTest{}, &NotFoundError{Kind: KindABTest, ID: testID}
	}
	var t ABTest
	if err := json.Unmarshal(data, &t); err != nil {
		return ABTest{}, fmt.Errorf("failed to decode ab test %s: %w", testID, err)
	}
	return t, nil
}

func (m *Manager) writeABTest(ctx context.Context, t ABTest) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode ab test %s: %w", t.ID, err)
	}
	if err := m.store.Set(ctx, abTestKey(t.ID), data); err != nil {
		return fmt.Errorf("failed to write ab test %s: %w", t.ID, err)
	}
	return nil
}
