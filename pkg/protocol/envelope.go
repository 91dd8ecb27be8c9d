package protocol

// envelope is the shared wire shape of every codec. Fields are pointers so a
// decoder can tell "absent" from "zero".
type envelope struct {
	T           Tag     `json:"t" msgpack:"t"`
	Name        *string `json:"name,omitempty" msgpack:"name,omitempty"`
	ShipType    *int    `json:"ship_type,omitempty" msgpack:"ship_type,omitempty"`
	X           *int    `json:"x,omitempty" msgpack:"x,omitempty"`
	Y           *int    `json:"y,omitempty" msgpack:"y,omitempty"`
	Health      *int    `json:"health,omitempty" msgpack:"health,omitempty"`
	Score       *int    `json:"score,omitempty" msgpack:"score,omitempty"`
	ProjectileX *int    `json:"projectile_x,omitempty" msgpack:"projectile_x,omitempty"`
	ProjectileY *int    `json:"projectile_y,omitempty" msgpack:"projectile_y,omitempty"`
	Content     *string `json:"content,omitempty" msgpack:"content,omitempty"`
	IsWinner    *bool   `json:"is_winner,omitempty" msgpack:"is_winner,omitempty"`
	MatchID     *int    `json:"match_id,omitempty" msgpack:"match_id,omitempty"`
}

func ptr[T any](v T) *T { return &v }

func toEnvelope(m Message) (envelope, error) {
	switch v := m.(type) {
	case Join:
		return envelope{T: TagJoin, Name: ptr(v.Name), ShipType: ptr(v.ShipType), MatchID: ptr(v.MatchID)}, nil
	case Position:
		return envelope{
			T:       TagPosition,
			Name:    ptr(v.Name),
			X:       ptr(v.X),
			Y:       ptr(v.Y),
			Health:  ptr(v.Health),
			Score:   ptr(v.Score),
			MatchID: ptr(v.MatchID),
		}, nil
	case Shoot:
		return envelope{
			T:           TagShoot,
			Name:        ptr(v.Name),
			ProjectileX: ptr(v.ProjectileX),
			ProjectileY: ptr(v.ProjectileY),
			MatchID:     ptr(v.MatchID),
		}, nil
	case Hit:
		return envelope{T: TagHit, Name: ptr(v.Name), MatchID: ptr(v.MatchID)}, nil
	case Chat:
		return envelope{T: TagChat, Name: ptr(v.Name), Content: ptr(v.Content), MatchID: ptr(v.MatchID)}, nil
	case GameOver:
		return envelope{
			T:        TagGameOver,
			Name:     ptr(v.Name),
			IsWinner: ptr(v.IsWinner),
			Score:    ptr(v.Score),
			MatchID:  ptr(v.MatchID),
		}, nil
	case Leave:
		return envelope{T: TagLeave, Name: ptr(v.Name), MatchID: ptr(v.MatchID)}, nil
	default:
		return envelope{}, &ProtocolError{Err: ErrUnsupportedMessage}
	}
}

// fieldCheck pairs a wire key with whether the decoded record carried it.
type fieldCheck struct {
	key     string
	present bool
}

func (e *envelope) require(fields ...fieldCheck) error {
	for _, f := range fields {
		if !f.present {
			return &ProtocolError{Tag: e.T, Field: f.key, Err: ErrMissingField}
		}
	}
	return nil
}

func (e *envelope) message() (Message, error) {
	name := fieldCheck{"name", e.Name != nil}
	matchID := fieldCheck{"match_id", e.MatchID != nil}

	switch e.T {
	case TagJoin:
		if err := e.require(name, fieldCheck{"ship_type", e.ShipType != nil}, matchID); err != nil {
			return nil, err
		}
		return Join{Name: *e.Name, ShipType: *e.ShipType, MatchID: *e.MatchID}, nil

	case TagPosition:
		err := e.require(name,
			fieldCheck{"x", e.X != nil},
			fieldCheck{"y", e.Y != nil},
			fieldCheck{"health", e.Health != nil},
			fieldCheck{"score", e.Score != nil},
			matchID)
		if err != nil {
			return nil, err
		}
		return Position{Name: *e.Name, X: *e.X, Y: *e.Y, Health: *e.Health, Score: *e.Score, MatchID: *e.MatchID}, nil

	case TagShoot:
		err := e.require(name,
			fieldCheck{"projectile_x", e.ProjectileX != nil},
			fieldCheck{"projectile_y", e.ProjectileY != nil},
			matchID)
		if err != nil {
			return nil, err
		}
		return Shoot{Name: *e.Name, ProjectileX: *e.ProjectileX, ProjectileY: *e.ProjectileY, MatchID: *e.MatchID}, nil

	case TagHit:
		if err := e.require(name, matchID); err != nil {
			return nil, err
		}
		return Hit{Name: *e.Name, MatchID: *e.MatchID}, nil

	case TagChat:
		if err := e.require(name, fieldCheck{"content", e.Content != nil}, matchID); err != nil {
			return nil, err
		}
		return Chat{Name: *e.Name, Content: *e.Content, MatchID: *e.MatchID}, nil

	case TagGameOver:
		err := e.require(name,
			fieldCheck{"is_winner", e.IsWinner != nil},
			fieldCheck{"score", e.Score != nil},
			matchID)
		if err != nil {
			return nil, err
		}
		return GameOver{Name: *e.Name, IsWinner: *e.IsWinner, Score: *e.Score, MatchID: *e.MatchID}, nil

	case TagLeave:
		if err := e.require(name, matchID); err != nil {
			return nil, err
		}
		return Leave{Name: *e.Name, MatchID: *e.MatchID}, nil

	case "":
		return nil, &ProtocolError{Err: ErrMalformed}

	default:
		return nil, &ProtocolError{Tag: e.T, Err: ErrUnknownTag}
	}
}
