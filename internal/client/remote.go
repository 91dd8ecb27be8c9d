package client

// Play-field geometry shared by both peers. Mirroring is only consistent when
// both sides use the same numbers.
const (
	FieldWidth  = 800
	FieldHeight = 600

	ShipWidth        = 50
	ShipHeight       = 60
	ProjectileWidth  = 5
	ProjectileHeight = 15
	ProjectileSpeed  = 10 // px per tick, downward in the local frame

	// Where a remote we have not heard a position from yet is assumed to be,
	// in its own frame.
	RemoteSpawnX = 380
	RemoteSpawnY = 450
	RemoteHealth = 3
)

// MirrorY maps a y reported in the sender's frame into the local frame, so the
// opponent appears at the far end of the field facing us. Applying it twice
// returns the original value.
func MirrorY(y, fieldHeight, entityHeight int) int {
	return fieldHeight - y - entityHeight
}

type Rect struct {
	X, Y, W, H int
}

func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W &&
		r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// RemotePlayer holds the last reported state of a peer. X, Y are in the
// peer's own frame; use MirroredY or Hitbox for anything drawn locally.
type RemotePlayer struct {
	Name     string
	ShipType int
	X        int
	Y        int
	Health   int
	Score    int
}

func newRemotePlayer(name string, shipType int) *RemotePlayer {
	return &RemotePlayer{
		Name:     name,
		ShipType: shipType,
		X:        RemoteSpawnX,
		Y:        RemoteSpawnY,
		Health:   RemoteHealth,
	}
}

func (p RemotePlayer) MirroredY(fieldHeight int) int {
	return MirrorY(p.Y, fieldHeight, ShipHeight)
}

func (p RemotePlayer) Hitbox(fieldHeight int) Rect {
	return Rect{X: p.X, Y: p.MirroredY(fieldHeight), W: ShipWidth, H: ShipHeight}
}

// RemoteProjectile is a peer's shot, already in the local frame.
type RemoteProjectile struct {
	X      int
	Y      int
	Active bool
}

func newRemoteProjectile(x, senderY, fieldHeight int) RemoteProjectile {
	return RemoteProjectile{X: x, Y: MirrorY(senderY, fieldHeight, ProjectileHeight), Active: true}
}

func (p *RemoteProjectile) advance(fieldHeight int) {
	p.Y += ProjectileSpeed
	if p.Y > fieldHeight {
		p.Active = false
	}
}

func (p RemoteProjectile) Hitbox() Rect {
	return Rect{X: p.X, Y: p.Y, W: ProjectileWidth, H: ProjectileHeight}
}
