package server

import (
	"context"
	"errors"

	"github.com/darigo/apiserver/config"
	"github.com/darigo/apiserver/internal/services"
	"github.com/darigo/apiserver/types"
	"go.uber.org/zap"
)

// ProvisionAdmin opens the configured data store and creates an admin
// account, or promotes the account already registered under email. The
// bool result reports whether a new account was created.
func ProvisionAdmin(ctx context.Context, cfg config.Config, logger *zap.Logger, name, email, password string) (types.User, bool, error) {
	if cfg.DBDriver == "memory" {
		return types.User{}, false, errors.New("admin provisioning needs a persistent DB_DRIVER")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{logger: logger}
	defer s.closeAll()

	repos, err := s.openRepositories(ctx, cfg)
	if err != nil {
		return types.User{}, false, err
	}
	userService := services.NewUserService(repos.users, repos.properties, nil, logger)
	userService.SetBcryptCost(cfg.BcryptCost)
	return userService.ProvisionAdmin(ctx, name, email, password)
}
