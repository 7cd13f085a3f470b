package subscriber

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store used in tests.
type MemoryStore struct {
	mu   sync.Mutex
	subs map[int64]Subscriber
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[int64]Subscriber)}
}

func (m *MemoryStore) Get(_ context.Context, chatID int64) (*Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := s
	return &cp, nil
}

func (m *MemoryStore) ListActive(_ context.Context) ([]Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Subscriber, 0, len(m.subs))
	for _, s := range m.subs {
		if s.Active {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

func (m *MemoryStore) Upsert(_ context.Context, s *Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[s.ChatID] = *s
	return nil
}

func (m *MemoryStore) Advance(_ context.Context, chatID int64, fromDay int, sentDate string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[chatID]
	if !ok || s.CurrentDay != fromDay {
		return false, nil
	}
	s.CurrentDay = fromDay + 1
	s.LastSentDay = fromDay
	s.LastSentDate = sentDate
	m.subs[chatID] = s
	return true, nil
}

func (m *MemoryStore) Activate(_ context.Context, chatID int64) error {
	return m.update(chatID, func(s *Subscriber) { s.Active = true })
}

func (m *MemoryStore) Deactivate(_ context.Context, chatID int64) error {
	return m.update(chatID, func(s *Subscriber) { s.Active = false })
}

func (m *MemoryStore) SetSendTime(_ context.Context, chatID int64, sendTime string) error {
	return m.update(chatID, func(s *Subscriber) { s.SendTime = sendTime })
}

func (m *MemoryStore) SetLanguage(_ context.Context, chatID int64, lang string) error {
	return m.update(chatID, func(s *Subscriber) { s.Language = lang })
}

func (m *MemoryStore) Reset(_ context.Context, chatID int64) error {
	return m.update(chatID, func(s *Subscriber) {
		s.CurrentDay = 1
		s.Active = true
		s.LastSentDay = 0
		s.LastSentDate = ""
	})
}

func (m *MemoryStore) Remove(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[chatID]; !ok {
		return ErrNotFound
	}
	delete(m.subs, chatID)
	return nil
}

func (m *MemoryStore) Count(_ context.Context) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := 0
	for _, s := range m.subs {
		if s.Active {
			active++
		}
	}
	return len(m.subs), active, nil
}

func (m *MemoryStore) update(chatID int64, fn func(*Subscriber)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[chatID]
	if !ok {
		return ErrNotFound
	}
	fn(&s)
	m.subs[chatID] = s
	return nil
}
