package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rickgao/douniu-client/internal/model"
)

// RoomByCode looks a room up by its join code.
func (c *Client) RoomByCode(ctx context.Context, token, code string) (*model.Room, error) {
	room, err := call[model.Room](ctx, c, http.MethodGet, "/room/code/"+url.PathEscape(code), token, nil)
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", code, err)
	}
	return &room, nil
}

// RoomPlayers returns the seated players of a room.
func (c *Client) RoomPlayers(ctx context.Context, token string, roomID int64) ([]model.RoomPlayer, error) {
	players, err := call[[]model.RoomPlayer](ctx, c, http.MethodGet, fmt.Sprintf("/room/%d/players", roomID), token, nil)
	if err != nil {
		return nil, fmt.Errorf("get players of room %d: %w", roomID, err)
	}
	return players, nil
}

// AvailableRooms lists rooms that are still waiting for players.
func (c *Client) AvailableRooms(ctx context.Context, token string) ([]model.Room, error) {
	rooms, err := call[[]model.Room](ctx, c, http.MethodGet, "/room/available", token, nil)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}
