package match

import (
	"errors"
	"testing"
)

func joinAll(t *testing.T, r *Registry, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := r.Join(n, 0, 7); err != nil {
			t.Fatalf("join %q: %v", n, err)
		}
	}
}

func TestJoinRejectsDuplicateNames(t *testing.T) {
	cases := []struct {
		name     string
		attempts []string
		want     []string
	}{
		{name: "distinct", attempts: []string{"Ace", "Bob"}, want: []string{"Ace", "Bob"}},
		{name: "repeat rejected", attempts: []string{"Ace", "Bob", "Ace"}, want: []string{"Ace", "Bob"}},
		{name: "case sensitive", attempts: []string{"Ace", "ace"}, want: []string{"Ace", "ace"}},
		{name: "first wins", attempts: []string{"Bob", "Ace", "Bob", "Bob"}, want: []string{"Bob", "Ace"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry()
			for _, n := range tc.attempts {
				err := r.Join(n, 1, 7)
				if err != nil && !errors.Is(err, ErrNameTaken) {
					t.Fatalf("unexpected err: %v", err)
				}
			}
			got := r.Names()
			if len(got) != len(tc.want) {
				t.Fatalf("names = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("names = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestJoinDuplicateDoesNotMutate(t *testing.T) {
	r := NewRegistry()
	joinAll(t, r, "Ace")
	r.ApplyPosition("Ace", 10, 20, 2, 300)

	if err := r.Join("Ace", 2, 9); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("want ErrNameTaken, got %v", err)
	}
	s, _ := r.Get("Ace")
	if s.ShipType != 0 || s.MatchID != 7 || s.Score != 300 || s.Health != 2 {
		t.Fatalf("session mutated by rejected join: %+v", s)
	}
	if r.MaxEverJoined() != 1 {
		t.Fatalf("maxEverJoined = %d, want 1", r.MaxEverJoined())
	}
}

func TestJoinRejectsUnusableNames(t *testing.T) {
	cases := []struct {
		name    string
		player  string
		wantErr error
	}{
		{name: "empty", player: "", wantErr: ErrEmptyName},
		{name: "roster delimiter", player: "Bo,b", wantErr: ErrInvalidName},
		{name: "leading space", player: " Cy", wantErr: ErrInvalidName},
		{name: "trailing tab", player: "Cy\t", wantErr: ErrInvalidName},
		{name: "inner space ok", player: "Big Cy", wantErr: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Join(tc.player, 0, 1)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Join(%q) = %v, want %v", tc.player, err, tc.wantErr)
			}
			want := 0
			if tc.wantErr == nil {
				want = 1
			}
			if r.Len() != want || r.MaxEverJoined() != want {
				t.Fatalf("len=%d maxEverJoined=%d, want %d", r.Len(), r.MaxEverJoined(), want)
			}
		})
	}
}

func TestApplyPositionEliminatesOnce(t *testing.T) {
	r := NewRegistry()
	joinAll(t, r, "A", "B")

	eliminated, ok := r.ApplyPosition("A", 1, 2, 0, 50)
	if !ok || !eliminated {
		t.Fatalf("first lethal update: eliminated=%v ok=%v", eliminated, ok)
	}
	eliminated, _ = r.ApplyPosition("A", 1, 2, -1, 50)
	if eliminated {
		t.Fatalf("second lethal update must not eliminate again")
	}
	s, _ := r.Get("A")
	if s.Alive {
		t.Fatalf("health<=0 must imply not alive")
	}

	if _, ok := r.ApplyPosition("ghost", 0, 0, 0, 0); ok {
		t.Fatalf("unknown name should not be applied")
	}
}

func TestCheckWinnerNeedsTwoPlayersEver(t *testing.T) {
	r := NewRegistry()
	joinAll(t, r, "solo")
	if _, ok := r.CheckWinner(); ok {
		t.Fatalf("must not declare with a single player ever joined")
	}

	// one leaves before the second arrives: the high-water mark stays 1
	r.Remove("solo")
	joinAll(t, r, "next")
	if _, ok := r.CheckWinner(); ok {
		t.Fatalf("must not declare when never two at once")
	}
}

func TestCheckWinnerFiresOnce(t *testing.T) {
	r := NewRegistry()
	joinAll(t, r, "A", "B")
	r.ApplyPosition("B", 0, 0, 3, 900)

	if _, ok := r.CheckWinner(); ok {
		t.Fatalf("two alive: no winner yet")
	}

	r.ApplyPosition("A", 0, 0, 0, 100)
	out, ok := r.CheckWinner()
	if !ok {
		t.Fatalf("expected a declaration")
	}
	if out.Winner != "B" || out.WinnerScore != 900 {
		t.Fatalf("outcome = %+v", out)
	}
	if len(out.Results) != 2 || out.Results[0].IsWinner || !out.Results[1].IsWinner {
		t.Fatalf("results = %+v", out.Results)
	}
	if r.State() != StateDeclared {
		t.Fatalf("state = %s", r.State())
	}

	// the eliminated player's disconnect re-runs the check
	r.Remove("A")
	if _, ok := r.CheckWinner(); ok {
		t.Fatalf("second declaration for the same match")
	}
}

func TestCheckWinnerAfterDisconnect(t *testing.T) {
	r := NewRegistry()
	joinAll(t, r, "A", "B", "C")
	r.ApplyPosition("A", 0, 0, 0, 0)
	if _, ok := r.CheckWinner(); ok {
		t.Fatalf("B and C still alive")
	}
	r.Remove("C")
	out, ok := r.CheckWinner()
	if !ok || out.Winner != "B" {
		t.Fatalf("want B declared, got %+v ok=%v", out, ok)
	}
	if r.MaxEverJoined() != 3 {
		t.Fatalf("maxEverJoined = %d", r.MaxEverJoined())
	}
}

func TestLatchResetsWhenRegistryEmpties(t *testing.T) {
	r := NewRegistry()
	joinAll(t, r, "A", "B")
	r.ApplyPosition("A", 0, 0, 0, 0)
	if _, ok := r.CheckWinner(); !ok {
		t.Fatalf("expected declaration")
	}
	r.Remove("A")
	r.Remove("B")
	if r.State() != StateUndetermined {
		t.Fatalf("state = %s after empty", r.State())
	}

	joinAll(t, r, "C", "D")
	r.ApplyPosition("D", 0, 0, 0, 0)
	out, ok := r.CheckWinner()
	if !ok || out.Winner != "C" {
		t.Fatalf("new match should conclude: %+v ok=%v", out, ok)
	}
}

func TestNoWinnerWhenAllDead(t *testing.T) {
	r := NewRegistry()
	joinAll(t, r, "A", "B")
	r.ApplyPosition("A", 0, 0, 0, 0)
	r.ApplyPosition("B", 0, 0, 0, 0)
	if _, ok := r.CheckWinner(); ok {
		t.Fatalf("no one alive, no winner")
	}
}
