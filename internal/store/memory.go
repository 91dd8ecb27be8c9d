package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps everything in process. Used when no database is configured.
type MemoryStore struct {
	mu          sync.Mutex
	games       []GameResult
	multiplayer []MultiplayerResult
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) SaveGameResult(_ context.Context, name string, score, level int, difficulty string) error {
	if name == "" {
		return ErrEmptyName
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games = append(m.games, GameResult{
		ID:         uint(len(m.games) + 1),
		PlayerName: name,
		Score:      score,
		Level:      level,
		Difficulty: difficulty,
		AchievedOn: m.now(),
	})
	return nil
}

func (m *MemoryStore) SaveMultiplayerResult(_ context.Context, matchID int, name string, score int) error {
	if name == "" {
		return ErrEmptyName
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.multiplayer = append(m.multiplayer, MultiplayerResult{
		ID:         uint(len(m.multiplayer) + 1),
		MatchID:    matchID,
		PlayerName: name,
		Score:      score,
		PlayedOn:   m.now(),
	})
	return nil
}

func (m *MemoryStore) HighScores(_ context.Context, limit int) ([]string, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	m.mu.Lock()
	rows := slices.Clone(m.games)
	m.mu.Unlock()

	slices.SortStableFunc(rows, func(a, b GameResult) int { return cmp.Compare(b.Score, a.Score) })
	out := make([]string, 0, min(limit, len(rows)))
	for _, r := range rows[:min(limit, len(rows))] {
		out = append(out, FormatGameResult(r))
	}
	return out, nil
}

func (m *MemoryStore) MultiplayerHighScores(_ context.Context, limit int) ([]string, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	m.mu.Lock()
	rows := slices.Clone(m.multiplayer)
	m.mu.Unlock()

	perMatch := make(map[int]int)
	for _, r := range rows {
		perMatch[r.MatchID]++
	}
	slices.SortStableFunc(rows, func(a, b MultiplayerResult) int { return cmp.Compare(b.Score, a.Score) })
	out := make([]string, 0, min(limit, len(rows)))
	for _, r := range rows[:min(limit, len(rows))] {
		out = append(out, FormatMultiplayerResult(r, perMatch[r.MatchID]))
	}
	return out, nil
}

func (m *MemoryStore) NextMatchID(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	highest := 0
	for _, r := range m.multiplayer {
		highest = max(highest, r.MatchID)
	}
	return highest + 1, nil
}

func (m *MemoryStore) Close() error { return nil }
