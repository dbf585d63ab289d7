package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/darigo/apiserver/internal/auth"
	"github.com/darigo/apiserver/internal/mq"
	"github.com/darigo/apiserver/internal/storage"
	"github.com/darigo/apiserver/internal/store"
	"github.com/darigo/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the cost existing password hashes were made with.
const DefaultBcryptCost = 12

// Registration is a validated sign-up request.
type Registration struct {
	Name       string
	Email      string
	Phone      string
	Password   string
	Role       types.Role
	AgencyInfo *types.AgencyInfo
	Location   *types.UserLocation
}

// ProfileChanges is a validated self-service profile edit. Password, when
// set, is the new plaintext password.
type ProfileChanges struct {
	Name       *string
	Phone      *string
	Location   *types.UserLocation
	AgencyInfo *types.AgencyInfo
	Password   *string
}

// Session is returned by register and login.
type Session struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo       UserRepository
	properties PropertyRepository
	codec      *auth.Codec
	media      MediaStore
	events     EventPublisher
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time
}

func NewUserService(repo UserRepository, properties PropertyRepository, codec *auth.Codec, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		repo:       repo,
		properties: properties,
		codec:      codec,
		logger:     logger,
		bcryptCost: DefaultBcryptCost,
		now:        time.Now,
	}
}

// SetBcryptCost overrides the hashing cost for new passwords.
func (s *UserService) SetBcryptCost(cost int) {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		s.bcryptCost = cost
	}
}

// SetMediaStore enables profile image uploads.
func (s *UserService) SetMediaStore(media MediaStore) {
	s.media = media
}

// SetEventPublisher enables user.* events.
func (s *UserService) SetEventPublisher(events EventPublisher) {
	s.events = events
}

func (s *UserService) Register(ctx context.Context, reg Registration) (Session, error) {
	if !reg.Role.SelfService() {
		return Session{}, ErrRoleNotAllowed
	}
	hash, err := s.hashPassword(reg.Password)
	if err != nil {
		return Session{}, err
	}

	user := types.User{
		Name:         reg.Name,
		Email:        types.NormalizeEmail(reg.Email),
		Phone:        reg.Phone,
		Role:         reg.Role,
		PasswordHash: hash,
		IsActive:     true,
		Location:     reg.Location,
	}
	if reg.Role == types.RoleAgency {
		user.AgencyInfo = reg.AgencyInfo
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return Session{}, err
	}
	token, err := s.codec.Issue(created)
	if err != nil {
		return Session{}, err
	}

	publish(ctx, s.logger, s.events, mq.ChannelUserRegistered, mq.UserEvent{
		UserID:   created.ID,
		Role:     string(created.Role),
		IsActive: created.IsActive,
	})
	return Session{Token: token, User: created}, nil
}

// Login checks the password before the account state so a disabled account
// is only revealed to someone holding its password.
func (s *UserService) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.repo.GetByEmail(ctx, types.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return Session{}, auth.ErrAccountDisabled
	}

	now := s.now()
	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("last login update failed", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	token, err := s.codec.Issue(user)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: user}, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, changes ProfileChanges) (types.User, error) {
	update := types.ProfileUpdate{
		Name:     changes.Name,
		Phone:    changes.Phone,
		Location: changes.Location,
	}
	if changes.AgencyInfo != nil {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return types.User{}, err
		}
		if current.Role == types.RoleAgency {
			update.AgencyInfo = changes.AgencyInfo
		}
	}
	if changes.Password != nil {
		hash, err := s.hashPassword(*changes.Password)
		if err != nil {
			return types.User{}, err
		}
		update.PasswordHash = &hash
	}
	return s.repo.UpdateProfile(ctx, id, update)
}

// UploadProfileImage stores a new avatar and points the profile at it.
func (s *UserService) UploadProfileImage(ctx context.Context, id string, upload Upload) (types.User, error) {
	if s.media == nil {
		return types.User{}, ErrStorageDisabled
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return types.User{}, err
	}

	key := storage.ObjectKey("users/"+id, upload.Filename)
	if err := s.media.Put(ctx, key, upload.Body, upload.Size, upload.ContentType); err != nil {
		return types.User{}, fmt.Errorf("store profile image: %w", err)
	}
	url := s.media.URL(key)
	user, err := s.repo.UpdateProfile(ctx, id, types.ProfileUpdate{ProfileImage: &url})
	if err != nil {
		s.removeObject(ctx, key)
		return types.User{}, err
	}
	return user, nil
}

// DeleteAccount removes the user and every listing they own.
func (s *UserService) DeleteAccount(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	removed, err := s.properties.DeleteByOwner(ctx, id)
	if err != nil {
		return fmt.Errorf("delete listings: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("account deleted", zap.String("user_id", id), zap.Int("listings_removed", removed))
	return nil
}

// Search lists active users for the public directory.
func (s *UserService) Search(ctx context.Context, filter types.UserFilter, offset, limit int) ([]types.User, int, error) {
	filter.ActiveOnly = true
	if filter.Role == types.RoleAdmin {
		return []types.User{}, 0, nil
	}
	offset, limit = clampPage(offset, limit)
	return s.repo.Search(ctx, filter, offset, limit)
}

// List returns every user for administrators.
func (s *UserService) List(ctx context.Context, filter types.UserFilter, offset, limit int) ([]types.User, int, error) {
	offset, limit = clampPage(offset, limit)
	return s.repo.Search(ctx, filter, offset, limit)
}

// ToggleActive flips the activation flag in one atomic write.
func (s *UserService) ToggleActive(ctx context.Context, actorID, id string) (types.User, error) {
	user, err := s.repo.ToggleActive(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	publish(ctx, s.logger, s.events, mq.ChannelUserStatusToggled, mq.UserEvent{
		UserID:   user.ID,
		ActorID:  actorID,
		Role:     string(user.Role),
		IsActive: user.IsActive,
	})
	return user, nil
}

// ProvisionAdmin creates an admin account or promotes an existing one. It
// is the only code path that assigns the admin role.
func (s *UserService) ProvisionAdmin(ctx context.Context, name, email, password string) (types.User, bool, error) {
	email = types.NormalizeEmail(email)
	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		promoted, err := s.repo.SetRole(ctx, existing.ID, types.RoleAdmin)
		return promoted, false, err
	case !errors.Is(err, store.ErrNotFound):
		return types.User{}, false, err
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return types.User{}, false, err
	}
	created, err := s.repo.Create(ctx, types.User{
		Name:         name,
		Email:        email,
		Role:         types.RoleAdmin,
		PasswordHash: hash,
		IsActive:     true,
		IsVerified:   true,
	})
	if err != nil {
		return types.User{}, false, err
	}
	return created, true, nil
}

func (s *UserService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *UserService) removeObject(ctx context.Context, key string) {
	if err := s.media.Delete(ctx, key); err != nil {
		s.logger.Warn("media cleanup failed", zap.String("key", key), zap.Error(err))
	}
}
