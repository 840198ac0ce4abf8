package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"cardroom/internal/room"
	"cardroom/internal/types"
)

type playerRow struct {
	ID         string    `gorm:"primaryKey"`
	Name       string    `gorm:"uniqueIndex;size:60"`
	Nickname   string    `gorm:"size:60"`
	DateJoined time.Time `gorm:"autoCreateTime"`
}

func (playerRow) TableName() string { return "players" }

type gameRow struct {
	ID      string `gorm:"primaryKey"`
	Name    string `gorm:"uniqueIndex;size:50"`
	MinSize int
	MaxSize int
}

func (gameRow) TableName() string { return "games" }

type roomRow struct {
	ID           string `gorm:"primaryKey"`
	GameID       string
	Game         gameRow `gorm:"foreignKey:GameID"`
	AdminID      string
	Admin        playerRow   `gorm:"foreignKey:AdminID"`
	Participants []playerRow `gorm:"many2many:room_participants"`
	Size         int
	Status       int
	Created      time.Time `gorm:"autoCreateTime"`
	Closed       *time.Time
}

func (roomRow) TableName() string { return "rooms" }

type turnStateRow struct {
	RoomID         string `gorm:"primaryKey"`
	Turn           int
	ActivePlayerID string
	Status         string
	Data           []byte `gorm:"type:jsonb"`
}

func (turnStateRow) TableName() string { return "turn_states" }

type turnEntryRow struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	RoomID   string `gorm:"index"`
	Turn     int
	PlayerID string
	Cards    []byte `gorm:"type:jsonb"`
	Skip     bool
}

func (turnEntryRow) TableName() string { return "turn_entries" }

// PostgresStore is the deployment store, backed by gorm over postgres.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&playerRow{}, &gameRow{}, &roomRow{}, &turnStateRow{}, &turnEntryRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) EnsurePlayer(ctx context.Context, id string) (*room.Participant, error) {
	var row playerRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = playerRow{ID: id, Name: "player-" + id[:min(8, len(id))]}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, fmt.Errorf("create player: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("get player: %w", err)
	}
	p := playerToDomain(row)
	return &p, nil
}

func (s *PostgresStore) CreateGame(ctx context.Context, g *room.Game) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	row := gameRow{ID: g.ID, Name: g.Name, MinSize: g.MinSize, MaxSize: g.MaxSize}
	if err := s.db.WithContext(ctx).FirstOrCreate(&row, gameRow{Name: g.Name}).Error; err != nil {
		return fmt.Errorf("create game: %w", err)
	}
	g.ID = row.ID
	return nil
}

func (s *PostgresStore) GetGameByID(ctx context.Context, id string) (*room.Game, error) {
	var row gameRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("get game", err)
	}
	g := gameToDomain(row)
	return &g, nil
}

func (s *PostgresStore) GetGameByName(ctx context.Context, name string) (*room.Game, error) {
	var row gameRow
	if err := s.db.WithContext(ctx).First(&row, "name = ?", name).Error; err != nil {
		return nil, notFoundOr("get game", err)
	}
	g := gameToDomain(row)
	return &g, nil
}

func (s *PostgresStore) ListGames(ctx context.Context) ([]room.Game, error) {
	var rows []gameRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	out := make([]room.Game, 0, len(rows))
	for _, row := range rows {
		out = append(out, gameToDomain(row))
	}
	return out, nil
}

func (s *PostgresStore) CreateRoom(ctx context.Context, r *room.Room) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Created.IsZero() {
		r.Created = time.Now()
	}
	row := roomToRow(*r)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRoom(ctx context.Context, id string) (*room.Room, error) {
	row, err := s.loadRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	r := roomToDomain(*row)
	return &r, nil
}

func (s *PostgresStore) ListRooms(ctx context.Context) ([]room.Room, error) {
	var rows []roomRow
	err := s.db.WithContext(ctx).
		Preload("Game").Preload("Admin").Preload("Participants").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	out := make([]room.Room, 0, len(rows))
	for _, row := range rows {
		out = append(out, roomToDomain(row))
	}
	return out, nil
}

func (s *PostgresStore) UpdateRoom(ctx context.Context, r *room.Room) error {
	row, err := s.loadRoom(ctx, r.ID)
	if err != nil {
		return err
	}
	updates := map[string]any{"size": r.Size, "status": int(r.Status)}
	if r.Status.IsTerminal() {
		now := time.Now()
		updates["closed"] = &now
	}
	if err := s.db.WithContext(ctx).Model(row).Updates(updates).Error; err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	parts := make([]playerRow, 0, len(r.Participants))
	for _, p := range r.Participants {
		parts = append(parts, playerRow{ID: p.ID, Name: p.Name, Nickname: p.Nickname})
	}
	if err := s.db.WithContext(ctx).Model(row).Association("Participants").Replace(parts); err != nil {
		return fmt.Errorf("update room participants: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveTurnState(ctx context.Context, roomID string, ts *types.TurnState) error {
	row := turnStateRow{
		RoomID:         roomID,
		Turn:           ts.Turn,
		ActivePlayerID: ts.ActivePlayerID,
		Status:         ts.Status,
		Data:           []byte(ts.Data),
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("save turn state: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTurnState(ctx context.Context, roomID string) (*types.TurnState, error) {
	var row turnStateRow
	if err := s.db.WithContext(ctx).First(&row, "room_id = ?", roomID).Error; err != nil {
		return nil, notFoundOr("get turn state", err)
	}
	return &types.TurnState{
		Turn:           row.Turn,
		ActivePlayerID: row.ActivePlayerID,
		Status:         row.Status,
		Data:           row.Data,
	}, nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, roomID string, entry TurnEntry) error {
	cards, err := json.Marshal(entry.Cards)
	if err != nil {
		return fmt.Errorf("encode turn cards: %w", err)
	}
	row := turnEntryRow{
		RoomID:   roomID,
		Turn:     entry.Turn,
		PlayerID: entry.PlayerID,
		Cards:    cards,
		Skip:     entry.Skip,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTurns(ctx context.Context, roomID string) ([]TurnEntry, error) {
	var rows []turnEntryRow
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).Order("id asc").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	out := make([]TurnEntry, 0, len(rows))
	for _, row := range rows {
		var cards []string
		if len(row.Cards) > 0 {
			if err := json.Unmarshal(row.Cards, &cards); err != nil {
				return nil, fmt.Errorf("decode turn cards: %w", err)
			}
		}
		out = append(out, TurnEntry{
			Turn:     row.Turn,
			PlayerID: row.PlayerID,
			Cards:    cards,
			Skip:     row.Skip,
		})
	}
	return out, nil
}

func (s *PostgresStore) loadRoom(ctx context.Context, id string) (*roomRow, error) {
	var row roomRow
	err := s.db.WithContext(ctx).
		Preload("Game").Preload("Admin").Preload("Participants").
		First(&row, "id = ?", id).Error
	if err != nil {
		return nil, notFoundOr("get room", err)
	}
	return &row, nil
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func playerToDomain(row playerRow) room.Participant {
	return room.Participant{ID: row.ID, Name: row.Name, Nickname: row.Nickname}
}

func gameToDomain(row gameRow) room.Game {
	return room.Game{ID: row.ID, Name: row.Name, MinSize: row.MinSize, MaxSize: row.MaxSize}
}

func roomToDomain(row roomRow) room.Room {
	parts := make([]room.Participant, 0, len(row.Participants))
	for _, p := range row.Participants {
		parts = append(parts, playerToDomain(p))
	}
	return room.Room{
		ID:           row.ID,
		Game:         gameToDomain(row.Game),
		Admin:        playerToDomain(row.Admin),
		Participants: parts,
		Size:         row.Size,
		Status:       room.Status(row.Status),
		Created:      row.Created,
	}
}

func roomToRow(r room.Room) roomRow {
	parts := make([]playerRow, 0, len(r.Participants))
	for _, p := range r.Participants {
		parts = append(parts, playerRow{ID: p.ID, Name: p.Name, Nickname: p.Nickname})
	}
	return roomRow{
		ID:           r.ID,
		GameID:       r.Game.ID,
		AdminID:      r.Admin.ID,
		Participants: parts,
		Size:         r.Size,
		Status:       int(r.Status),
		Created:      r.Created,
	}
}
