package store

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLStore is the Postgres-backed Store.
type SQLStore struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&GameResult{}, &MultiplayerResult{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) SaveGameResult(ctx context.Context, name string, score, level int, difficulty string) error {
	if name == "" {
		return ErrEmptyName
	}
	r := GameResult{PlayerName: name, Score: score, Level: level, Difficulty: difficulty}
	return s.db.WithContext(ctx).Create(&r).Error
}

func (s *SQLStore) SaveMultiplayerResult(ctx context.Context, matchID int, name string, score int) error {
	if name == "" {
		return ErrEmptyName
	}
	r := MultiplayerResult{MatchID: matchID, PlayerName: name, Score: score}
	return s.db.WithContext(ctx).Create(&r).Error
}

func (s *SQLStore) HighScores(ctx context.Context, limit int) ([]string, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	var rows []GameResult
	err := s.db.WithContext(ctx).
		Order("score DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, FormatGameResult(r))
	}
	return out, nil
}

type rankedResult struct {
	MultiplayerResult
	PlayersInMatch int
}

func (s *SQLStore) MultiplayerHighScores(ctx context.Context, limit int) ([]string, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	var rows []rankedResult
	err := s.db.WithContext(ctx).Raw(`
		SELECT id, match_id, player_name, score, played_on,
		       COUNT(*) OVER (PARTITION BY match_id) AS players_in_match
		FROM multiplayer_results
		ORDER BY score DESC
		LIMIT ?`, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, FormatMultiplayerResult(r.MultiplayerResult, r.PlayersInMatch))
	}
	return out, nil
}

func (s *SQLStore) NextMatchID(ctx context.Context) (int, error) {
	var next int
	err := s.db.WithContext(ctx).
		Model(&MultiplayerResult{}).
		Select("COALESCE(MAX(match_id), 0) + 1").
		Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
