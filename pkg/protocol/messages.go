package protocol

// Wire records. Every record carries its tag in "t"; the other keys depend on the tag.
//
// Join:      name, ship_type, match_id
// Position:  name, x, y, health, score, match_id
// Shoot:     name, projectile_x, projectile_y, match_id
// Hit:       name (of the target), match_id
// Chat:      name, content, match_id
// GameOver:  name, is_winner, score, match_id
// Leave:     name, match_id
//
// Chat doubles as the control plane when name is "SYSTEM": handshake replies
// (NAME_ACCEPTED / NAME_EXISTS), roster announcements ("Online players: a,b,")
// and join/leave/elimination notices.

type Tag string

const (
	TagJoin     Tag = "join"
	TagPosition Tag = "position"
	TagShoot    Tag = "shoot"
	TagHit      Tag = "hit"
	TagChat     Tag = "chat"
	TagGameOver Tag = "game_over"
	TagLeave    Tag = "leave"
)

// Message is the tagged union of everything that travels between the relay and its clients.
type Message interface {
	Tag() Tag
}

type Join struct {
	Name     string
	ShipType int
	MatchID  int
}

type Position struct {
	Name    string
	X       int
	Y       int
	Health  int
	Score   int
	MatchID int
}

type Shoot struct {
	Name        string
	ProjectileX int
	ProjectileY int
	MatchID     int
}

// Hit names the player that was hit, not the shooter.
type Hit struct {
	Name    string
	MatchID int
}

type Chat struct {
	Name    string
	Content string
	MatchID int
}

type GameOver struct {
	Name     string
	IsWinner bool
	Score    int
	MatchID  int
}

// Leave is sent by the relay when a player's connection goes away.
type Leave struct {
	Name    string
	MatchID int
}

func (Join) Tag() Tag     { return TagJoin }
func (Position) Tag() Tag { return TagPosition }
func (Shoot) Tag() Tag    { return TagShoot }
func (Hit) Tag() Tag      { return TagHit }
func (Chat) Tag() Tag     { return TagChat }
func (GameOver) Tag() Tag { return TagGameOver }
func (Leave) Tag() Tag    { return TagLeave }
