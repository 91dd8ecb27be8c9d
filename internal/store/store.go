package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidLimit = errors.New("limit must be positive")
var ErrEmptyName = errors.New("empty player name")

// Store keeps single-player high scores and multiplayer match results.
type Store interface {
	SaveGameResult(ctx context.Context, name string, score, level int, difficulty string) error
	SaveMultiplayerResult(ctx context.Context, matchID int, name string, score int) error
	HighScores(ctx context.Context, limit int) ([]string, error)
	MultiplayerHighScores(ctx context.Context, limit int) ([]string, error)
	// NextMatchID is one past the highest recorded match id, 1 on an empty store.
	NextMatchID(ctx context.Context) (int, error)
	Close() error
}

type GameResult struct {
	ID         uint      `gorm:"primaryKey"`
	PlayerName string    `gorm:"size:50;not null"`
	Score      int       `gorm:"not null;index"`
	Level      int       `gorm:"not null"`
	Difficulty string    `gorm:"size:20;not null"`
	AchievedOn time.Time `gorm:"autoCreateTime"`
}

type MultiplayerResult struct {
	ID         uint      `gorm:"primaryKey"`
	MatchID    int       `gorm:"not null;index"`
	PlayerName string    `gorm:"size:50;not null"`
	Score      int       `gorm:"not null"`
	PlayedOn   time.Time `gorm:"autoCreateTime"`
}

const dateLayout = "02/01/2006 15:04"

func FormatGameResult(r GameResult) string {
	return fmt.Sprintf("%s - %d pts (Lvl %d %s) on %s",
		r.PlayerName, r.Score, r.Level, r.Difficulty, r.AchievedOn.Format(dateLayout))
}

func FormatMultiplayerResult(r MultiplayerResult, playersInMatch int) string {
	return fmt.Sprintf("%s - %d pts (Match #%d, %d players) on %s",
		r.PlayerName, r.Score, r.MatchID, playersInMatch, r.PlayedOn.Format(dateLayout))
}

func checkLimit(limit int) error {
	if limit <= 0 {
		return ErrInvalidLimit
	}
	return nil
}
