package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studybuddy/backend/internal/models"
)

// GormStore is the Postgres-backed LobbyStore. Capacity checks run inside
// a transaction holding a row lock on the lobby, so two concurrent joins
// at MaxUsers-1 resolve to one success and one ErrLobbyFull.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindOrNone(ctx context.Context, lobbyID string) (*models.Lobby, error) {
	var lobby models.Lobby
	err := s.db.WithContext(ctx).Preload("Users").Where("lobby_id = ?", lobbyID).First(&lobby).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &lobby, nil
}

func (s *GormStore) Create(ctx context.Context, init LobbyInit) (*models.Lobby, error) {
	lobby := models.Lobby{
		LobbyID:      init.LobbyID,
		Name:         init.Name,
		ClassName:    init.ClassName,
		School:       init.School,
		Host:         init.Host,
		MaxUsers:     init.MaxUsers,
		CurrentUsers: 1,
		Users:        []models.LobbyUser{{Username: init.Host}},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Lobby
		if err := tx.Where("lobby_id = ?", init.LobbyID).First(&existing).Error; err == nil {
			return ErrDuplicateID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&lobby).Error
	})
	if err != nil {
		return nil, translateErr(err)
	}
	return &lobby, nil
}

func (s *GormStore) AddUser(ctx context.Context, lobbyID, username string) (*models.Lobby, error) {
	var lobby models.Lobby
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("lobby_id = ?", lobbyID).First(&lobby).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var count int64
		if err := tx.Model(&models.LobbyUser{}).
			Where("lobby_ref = ? AND username = ?", lobby.ID, username).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			if lobby.CurrentUsers >= lobby.MaxUsers {
				return ErrLobbyFull
			}
			if err := tx.Create(&models.LobbyUser{LobbyRef: lobby.ID, Username: username}).Error; err != nil {
				return err
			}
			lobby.CurrentUsers++
			if err := tx.Model(&lobby).Update("current_users", lobby.CurrentUsers).Error; err != nil {
				return err
			}
		}
		return tx.Where("lobby_ref = ?", lobby.ID).Find(&lobby.Users).Error
	})
	if err != nil {
		return nil, translateErr(err)
	}
	return &lobby, nil
}

func (s *GormStore) RemoveUser(ctx context.Context, lobbyID, username string) (*models.Lobby, error) {
	var lobby models.Lobby
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("lobby_id = ?", lobbyID).First(&lobby).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		res := tx.Where("lobby_ref = ? AND username = ?", lobby.ID, username).
			Delete(&models.LobbyUser{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			lobby.CurrentUsers--
		}
		if lobby.CurrentUsers <= 0 {
			deleted = true
			return deleteLobby(tx, &lobby)
		}
		if err := tx.Model(&lobby).Update("current_users", lobby.CurrentUsers).Error; err != nil {
			return err
		}
		return tx.Where("lobby_ref = ?", lobby.ID).Find(&lobby.Users).Error
	})
	if err != nil {
		return nil, translateErr(err)
	}
	if deleted {
		return nil, nil
	}
	return &lobby, nil
}

func (s *GormStore) AppendMessage(ctx context.Context, lobbyID, username, text string) (*models.Message, error) {
	var lobby models.Lobby
	if err := s.db.WithContext(ctx).Where("lobby_id = ?", lobbyID).First(&lobby).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	msg := models.Message{LobbyRef: lobby.ID, Username: username, Text: text}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &msg, nil
}

func (s *GormStore) List(ctx context.Context, className, school string) ([]models.Lobby, error) {
	query := s.db.WithContext(ctx).Preload("Users")
	if className != "" {
		query = query.Where("class_name = ?", className)
	}
	if school != "" {
		query = query.Where("school = ?", school)
	}

	var lobbies []models.Lobby
	if err := query.Find(&lobbies).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return lobbies, nil
}

func (s *GormStore) Delete(ctx context.Context, lobbyID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lobby models.Lobby
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("lobby_id = ?", lobbyID).First(&lobby).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return deleteLobby(tx, &lobby)
	})
	return translateErr(err)
}

func deleteLobby(tx *gorm.DB, lobby *models.Lobby) error {
	if err := tx.Where("lobby_ref = ?", lobby.ID).Delete(&models.LobbyUser{}).Error; err != nil {
		return err
	}
	if err := tx.Where("lobby_ref = ?", lobby.ID).Delete(&models.Message{}).Error; err != nil {
		return err
	}
	return tx.Delete(lobby).Error
}

// translateErr keeps the store's sentinel errors as-is, maps gorm's
// translated unique-violation to ErrDuplicateID (requires the connection
// to be opened with TranslateError), and wraps everything else as
// ErrUnavailable.
func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicateID), errors.Is(err, ErrLobbyFull):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateID
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
