package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rickgao/douniu-client/internal/api"
	"github.com/rickgao/douniu-client/internal/auth"
	"github.com/rickgao/douniu-client/internal/config"
	"github.com/rickgao/douniu-client/internal/model"
	"github.com/rickgao/douniu-client/internal/table"
)

// openSession picks the session token: an explicit token, then a stored
// session, then a fresh login.
func openSession(ctx context.Context, cfg config.AuthConfig, store auth.Store, client auth.Authenticator, logger *slog.Logger) (*auth.Session, error) {
	if cfg.Token != "" {
		s := &auth.Session{Token: cfg.Token}
		if user, err := client.Me(ctx, cfg.Token); err != nil {
			logger.Warn("configured token not verified", "error", err)
		} else {
			s.User = *user
		}
		return s, nil
	}

	s, err := auth.Restore(ctx, store, client, logger)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, auth.ErrNoSession) {
		logger.Info("stored session unusable", "error", err)
	}

	if cfg.Phone == "" || cfg.Password == "" {
		return nil, errors.New("no session: set auth.token or auth.phone and auth.password")
	}

	s, err = auth.Login(ctx, store, client, cfg.Phone, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	logger.Info("logged in", "user_id", s.User.ID, "nickname", s.User.Nickname)
	return s, nil
}

type roomLookup interface {
	RoomByCode(ctx context.Context, token, code string) (*model.Room, error)
}

var _ roomLookup = (*api.Client)(nil)

// resolveRoom turns the configured room code into the watcher config.
func resolveRoom(ctx context.Context, cfg config.RoomConfig, s *auth.Session, rooms roomLookup, logger *slog.Logger) (table.Config, error) {
	wc := table.Config{
		RoomCode: cfg.Code,
		UserID:   cfg.UserID,
		Extra:    cfg.Subscriptions,
	}
	if wc.UserID == 0 {
		wc.UserID = s.User.ID
	}
	if cfg.Code == "" {
		return wc, nil
	}

	room, err := rooms.RoomByCode(ctx, s.Token, cfg.Code)
	if err != nil {
		return table.Config{}, err
	}
	wc.RoomID = room.ID

	logger.Info("watching room",
		"room_id", room.ID,
		"room_code", room.RoomCode,
		"status", room.Status,
		"user_id", wc.UserID,
	)
	return wc, nil
}
