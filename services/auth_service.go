package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/murmur/config"
	"github.com/cppla/murmur/models"
	"github.com/cppla/murmur/utils"
)

// AuthService verifies credentials, issues tokens and creates accounts.
type AuthService struct {
	db *gorm.DB
}

// NewAuthService creates an AuthService.
func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{db: db}
}

// Register creates a local account. The name must be unique.
func (s *AuthService) Register(name, password string) (*models.User, error) {
	var existing models.User
	err := s.db.Where("name = ?", name).First(&existing).Error
	if err == nil {
		return nil, fmt.Errorf("name %q already exists: %w", name, ErrConflict)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := models.User{Name: name, PasswordHash: hash}
	if err := s.db.Create(&user).Error; err != nil {
		// lost the race against a concurrent registration of the same name
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("name %q already exists: %w", name, ErrConflict)
		}
		return nil, err
	}
	user.PasswordHash = ""
	return &user, nil
}

// Validate checks name+password against the stored bcrypt hash. A nil user
// with nil error means the credentials did not match.
func (s *AuthService) Validate(name, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("name = ?", name).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !utils.CheckPassword(user.PasswordHash, password) {
		return nil, nil
	}
	user.PasswordHash = ""
	return &user, nil
}

// Login issues a signed token for the validated user.
func (s *AuthService) Login(user *models.User) (string, error) {
	ttl := time.Duration(config.Get().TokenTTLHours) * time.Hour
	return utils.GenerateToken(user.ID, user.Name, ttl)
}

// GetByID returns the public profile for a user.
func (s *AuthService) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	user.PasswordHash = ""
	return &user, nil
}

// LoginWithProvider finds or creates the account bound to an OAuth identity
// and returns it. Provider accounts have no local password.
func (s *AuthService) LoginWithProvider(provider, providerID, name string) (*models.User, error) {
	var user models.User
	err := s.db.Where("provider = ? AND provider_id = ?", provider, providerID).First(&user).Error
	if err == nil {
		user.PasswordHash = ""
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = models.User{Name: name, Provider: provider, ProviderID: providerID}
	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// the provider handle collides with an existing local name;
			// disambiguate with a provider-scoped suffix
			user.Name = fmt.Sprintf("%s-%s", name, shortID(providerID))
			if err := s.db.Create(&user).Error; err != nil {
				return nil, err
			}
		} else {
			return nil, err
		}
	}
	user.PasswordHash = ""
	return &user, nil
}

func shortID(s string) string {
	if len(s) > 6 {
		return s[:6]
	}
	return s
}
