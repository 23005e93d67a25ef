package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/feedback"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/logging"
	"github.com/google/uuid"
)

// MemoryStore is an in-process Repository for tests and throwaway runs.
type MemoryStore struct {
	mu          sync.Mutex
	events      []feedback.Event
	weights     map[string]CityWeightState
	adaptations []logging.AdaptationEntry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{weights: make(map[string]CityWeightState)}
}

func (m *MemoryStore) Record(ev feedback.Event) (string, error) {
	ev, err := prepareEvent(ev)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return ev.ID, nil
}

func (m *MemoryStore) CommitFeedback(ev feedback.Event, st CityWeightState) (string, error) {
	ev, err := prepareEvent(ev)
	if err != nil {
		return "", err
	}
	if st.City != ev.City {
		return "", fmt.Errorf("commit feedback: state city %q does not match event city %q", st.City, ev.City)
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	m.weights[st.City] = st.Clone()
	return ev.ID, nil
}

func (m *MemoryStore) EventsForCity(city string) ([]feedback.Event, error) {
	key, err := feedback.NormalizeCity(city)
	if err != nil {
		return nil, err
	}
	return m.filter(func(ev feedback.Event) bool { return ev.City == key }), nil
}

func (m *MemoryStore) EventsForCase(caseID string) ([]feedback.Event, error) {
	return m.filter(func(ev feedback.Event) bool { return ev.CaseID == caseID }), nil
}

func (m *MemoryStore) AllEvents() ([]feedback.Event, error) {
	return m.filter(func(feedback.Event) bool { return true }), nil
}

func (m *MemoryStore) CountByPolarity(city string) (approve, reject int, err error) {
	events, err := m.EventsForCity(city)
	if err != nil {
		return 0, 0, err
	}
	for _, ev := range events {
		if ev.Polarity == feedback.Approve {
			approve++
		} else {
			reject++
		}
	}
	return approve, reject, nil
}

func (m *MemoryStore) filter(keep func(feedback.Event) bool) []feedback.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []feedback.Event{}
	for _, ev := range m.events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	return out
}

func (m *MemoryStore) Load(city string) (CityWeightState, bool, error) {
	key, err := feedback.NormalizeCity(city)
	if err != nil {
		return CityWeightState{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.weights[key]
	if !ok {
		return CityWeightState{}, false, nil
	}
	return st.Clone(), true, nil
}

func (m *MemoryStore) Save(st CityWeightState) error {
	key, err := feedback.NormalizeCity(st.City)
	if err != nil {
		return err
	}
	st.City = key
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weights[key] = st.Clone()
	return nil
}

func (m *MemoryStore) List() ([]CityWeightState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	states := make([]CityWeightState, 0, len(m.weights))
	for _, st := range m.weights {
		states = append(states, st.Clone())
	}
	sort.Slice(states, func(i, j int) bool { return states[i].City < states[j].City })
	return states, nil
}

func (m *MemoryStore) LogAdaptation(entry logging.AdaptationEntry) error {
	if entry.EventID == "" {
		entry.EventID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adaptations = append(m.adaptations, entry)
	return nil
}

func (m *MemoryStore) RecentAdaptations(limit int) ([]logging.AdaptationEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []logging.AdaptationEntry
	for i := len(m.adaptations) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.adaptations[i])
	}
	return out, nil
}
