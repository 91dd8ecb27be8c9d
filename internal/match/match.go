package match

import (
	"errors"
	"slices"
	"strings"
)

var ErrNameTaken = errors.New("name already registered")
var ErrEmptyName = errors.New("empty player name")

// ErrInvalidName covers names the roster cannot carry: the roster is a
// comma-separated list that receivers trim.
var ErrInvalidName = errors.New("invalid player name")

// Spawn values for a freshly joined session.
const (
	SpawnX      = 380
	SpawnY      = 450
	StartHealth = 3
)

type State string

const (
	StateUndetermined State = "undetermined"
	StateDeclared     State = "declared"
)

type Session struct {
	Name     string
	ShipType int
	MatchID  int
	X        int
	Y        int
	Health   int
	Score    int
	Alive    bool
}

// Result is one player's line in a declared outcome.
type Result struct {
	Name     string
	MatchID  int
	Score    int
	IsWinner bool
}

type Outcome struct {
	Winner      string
	WinnerScore int
	Results     []Result // join order
}

// Registry is the relay's view of the running match. It does no locking: the
// owner must serialize calls (the lobby actor does).
type Registry struct {
	sessions      map[string]*Session
	order         []string
	maxEverJoined int
	state         State
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		state:    StateUndetermined,
	}
}

func (r *Registry) Join(name string, shipType, matchID int) error {
	if name == "" {
		return ErrEmptyName
	}
	if strings.ContainsRune(name, ',') || strings.TrimSpace(name) != name {
		return ErrInvalidName
	}
	if _, ok := r.sessions[name]; ok {
		return ErrNameTaken
	}
	r.sessions[name] = &Session{
		Name:     name,
		ShipType: shipType,
		MatchID:  matchID,
		X:        SpawnX,
		Y:        SpawnY,
		Health:   StartHealth,
		Alive:    true,
	}
	r.order = append(r.order, name)
	if len(r.sessions) > r.maxEverJoined {
		r.maxEverJoined = len(r.sessions)
	}
	return nil
}

// ApplyPosition stores a reported position. eliminated is true only on the
// update that takes a living session to health <= 0.
func (r *Registry) ApplyPosition(name string, x, y, health, score int) (eliminated, ok bool) {
	s, ok := r.sessions[name]
	if !ok {
		return false, false
	}
	s.X, s.Y, s.Health, s.Score = x, y, health, score
	if s.Health <= 0 && s.Alive {
		s.Alive = false
		return true, true
	}
	return false, true
}

func (r *Registry) Remove(name string) (Session, bool) {
	s, ok := r.sessions[name]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	if len(r.sessions) == 0 {
		// the match is over for everyone; the next arrivals start a fresh one
		r.state = StateUndetermined
	}
	return *s, true
}

// CheckWinner declares the last player standing. It fires at most once until
// the registry empties.
func (r *Registry) CheckWinner() (Outcome, bool) {
	if r.state == StateDeclared || r.maxEverJoined < 2 {
		return Outcome{}, false
	}

	var alive []*Session
	for _, n := range r.order {
		if s := r.sessions[n]; s.Alive && s.Health > 0 {
			alive = append(alive, s)
		}
	}
	if len(alive) != 1 {
		return Outcome{}, false
	}

	winner := alive[0]
	r.state = StateDeclared
	out := Outcome{Winner: winner.Name, WinnerScore: winner.Score}
	for _, n := range r.order {
		s := r.sessions[n]
		out.Results = append(out.Results, Result{
			Name:     s.Name,
			MatchID:  s.MatchID,
			Score:    s.Score,
			IsWinner: s.Name == winner.Name,
		})
	}
	return out, true
}

func (r *Registry) Get(name string) (Session, bool) {
	s, ok := r.sessions[name]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Names returns registered names in join order.
func (r *Registry) Names() []string { return slices.Clone(r.order) }

func (r *Registry) Len() int           { return len(r.sessions) }
func (r *Registry) MaxEverJoined() int { return r.maxEverJoined }
func (r *Registry) State() State       { return r.state }

// Sessions returns copies in join order.
func (r *Registry) Sessions() []Session {
	out := make([]Session, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, *r.sessions[n])
	}
	return out
}
