package services

import (
	"context"
	"errors"

	"github.com/franciscosanchezn/pizza-mcp/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ClientService provisions OAuth clients for the development token issuer.
// Secrets are bcrypt-hashed before they touch the database; the plaintext
// exists only in the caller's hands.
type ClientService interface {
	// CreateClient registers a client. The Secret field carries the
	// plaintext on input and is hashed in place before persistence.
	CreateClient(ctx context.Context, client *models.OAuthClient) error
	GetClientByID(ctx context.Context, id string) (*models.OAuthClient, error)
	ListClients(ctx context.Context) ([]models.OAuthClient, error)
	DeleteClient(ctx context.Context, id string) error
}

type clientService struct {
	db *gorm.DB
}

func NewClientService(db *gorm.DB) ClientService {
	return &clientService{db: db}
}

func (s *clientService) CreateClient(ctx context.Context, client *models.OAuthClient) error {
	if client.ID == "" {
		return models.NewValidationError("Client ID is required")
	}
	if client.Secret == "" {
		return models.NewValidationError("Client secret is required")
	}

	var existing models.OAuthClient
	if err := s.db.WithContext(ctx).Where("id = ?", client.ID).First(&existing).Error; err == nil {
		return models.NewAPIError(models.ErrConflict, "Client already exists",
			map[string]interface{}{"client_id": client.ID})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return storeError(ctx, err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(client.Secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	client.Secret = string(hashed)

	if err := s.db.WithContext(ctx).Create(client).Error; err != nil {
		return storeError(ctx, err)
	}
	return nil
}

func (s *clientService) GetClientByID(ctx context.Context, id string) (*models.OAuthClient, error) {
	var client models.OAuthClient
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Client", id)
		}
		return nil, storeError(ctx, err)
	}
	return &client, nil
}

func (s *clientService) ListClients(ctx context.Context) ([]models.OAuthClient, error) {
	var clients []models.OAuthClient
	if err := s.db.WithContext(ctx).Find(&clients).Error; err != nil {
		return nil, storeError(ctx, err)
	}
	return clients, nil
}

func (s *clientService) DeleteClient(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.OAuthClient{})
	if result.Error != nil {
		return storeError(ctx, result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Client", id)
	}
	return nil
}
