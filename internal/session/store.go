package session

import (
	"sync"
	"time"

	"portrait-studio-bot/internal/studio"
)

// Record remembers one finished generation for /history.
type Record struct {
	Prompt    string
	Model     studio.Model
	Mode      studio.ReferenceMode
	CreatedAt time.Time
}

// State is everything the bot keeps between messages of one user in one
// chat. Source and Reference hold decoded-once assets, so an idle session
// can pin a few hundred kilobytes; the store purges idle entries for that
// reason.
type State struct {
	Source          *studio.Asset
	Reference       *studio.Asset
	LastResult      *studio.Asset
	Mode            studio.ReferenceMode
	CustomFeature   string
	AwaitingFeature bool
	Model           studio.Model
	Aspect          studio.AspectRatio
	History         []Record
	LastActivity    time.Time
}

type stateKey struct {
	ChatID int64
	UserID int64
}

type Options struct {
	HistoryLimit int
}

type Store struct {
	mu           sync.Mutex
	states       map[stateKey]*State
	historyLimit int
}

func NewStore(opts Options) *Store {
	historyLimit := opts.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 10
	}

	return &Store{
		states:       make(map[stateKey]*State),
		historyLimit: historyLimit,
	}
}

// Get returns a copy of the current state. The History slice is copied too,
// so callers can hold the result across other store calls.
func (s *Store) Get(chatID, userID int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(stateKey{ChatID: chatID, UserID: userID})
	out := *st
	out.History = make([]Record, len(st.History))
	copy(out.History, st.History)
	return out
}

func (s *Store) Update(chatID, userID int64, fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(stateKey{ChatID: chatID, UserID: userID})
	fn(st)
	st.LastActivity = time.Now()
}

func (s *Store) Reset(chatID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[stateKey{ChatID: chatID, UserID: userID}] = defaultState()
}

// AddRecord prepends a finished generation, newest first, and trims to the
// configured limit.
func (s *Store) AddRecord(chatID, userID int64, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(stateKey{ChatID: chatID, UserID: userID})
	st.History = append([]Record{rec}, st.History...)
	if len(st.History) > s.historyLimit {
		st.History = st.History[:s.historyLimit]
	}
	st.LastActivity = time.Now()
}

// PurgeIdle drops sessions whose last activity is older than ttl and
// reports how many were removed.
func (s *Store) PurgeIdle(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for key, st := range s.states {
		if st.LastActivity.Before(cutoff) {
			delete(s.states, key)
			removed++
		}
	}
	return removed
}

func (s *Store) getOrCreateLocked(key stateKey) *State {
	if st, ok := s.states[key]; ok {
		return st
	}

	st := defaultState()
	s.states[key] = st
	return st
}

func defaultState() *State {
	return &State{
		Model:        studio.ModelFlashImage,
		Aspect:       studio.RatioSource,
		LastActivity: time.Now(),
	}
}
