package roomsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"cardroom/internal/room"
	"cardroom/internal/types"
)

// Credentials identifies the caller on every request. Constructed once at
// startup and handed to whatever issues requests; there is no ambient
// session storage anywhere else.
type Credentials struct {
	UserID string
}

// Client talks to the room service REST API. All responses arrive inside a
// {"data": ...} envelope; rejections inside {"error": {"message": ...}}.
type Client struct {
	base  string
	creds Credentials
	http  *http.Client
}

func NewClient(baseURL string, creds Credentials) *Client {
	return &Client{
		base:  baseURL,
		creds: creds,
		http:  http.DefaultClient,
	}
}

// Credentials returns the identity this client acts as.
func (c *Client) Credentials() Credentials { return c.creds }

// RoomUpdate carries the admin-settable room fields. Nil means "leave as
// is"; the server rejects anything the caller is not allowed to change.
type RoomUpdate struct {
	Size   *int         `json:"size,omitempty"`
	Status *room.Status `json:"status,omitempty"`
}

type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type listEnvelope struct {
	Results json.RawMessage `json:"results"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) GetRoom(ctx context.Context, roomID string) (*room.Room, error) {
	var r room.Room
	if err := c.do(ctx, http.MethodGet, "/rooms/"+roomID, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ListRooms(ctx context.Context) ([]room.Room, error) {
	var rooms []room.Room
	if err := c.doList(ctx, "/rooms", &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *Client) GetTurnState(ctx context.Context, roomID string) (*types.TurnState, error) {
	var ts types.TurnState
	if err := c.do(ctx, http.MethodGet, "/rooms/"+roomID+"/data", nil, &ts); err != nil {
		return nil, err
	}
	return &ts, nil
}

func (c *Client) UpdateRoom(ctx context.Context, roomID string, update RoomUpdate) (*room.Room, error) {
	var r room.Room
	if err := c.do(ctx, http.MethodPut, "/rooms/"+roomID, update, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) AddParticipant(ctx context.Context, roomID, userID string) (*room.Room, error) {
	body := map[string]string{"user_id": userID}
	var r room.Room
	if err := c.do(ctx, http.MethodPost, "/rooms/"+roomID+"/players", body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) RemoveParticipant(ctx context.Context, roomID, userID string) error {
	return c.do(ctx, http.MethodDelete, "/rooms/"+roomID+"/players/"+userID, nil, nil)
}

func (c *Client) SubmitTurn(ctx context.Context, roomID string, turn types.TurnSubmission) (*types.TurnState, error) {
	var ts types.TurnState
	if err := c.do(ctx, http.MethodPost, "/rooms/"+roomID+"/turn", turn, &ts); err != nil {
		return nil, err
	}
	return &ts, nil
}

func (c *Client) CreateRoom(ctx context.Context, gameID string, size int) (*room.Room, error) {
	body := map[string]int{"size": size}
	var r room.Room
	if err := c.do(ctx, http.MethodPost, "/games/"+gameID+"/rooms", body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ListGames(ctx context.Context) ([]room.Game, error) {
	var games []room.Game
	if err := c.doList(ctx, "/games", &games); err != nil {
		return nil, err
	}
	return games, nil
}

func (c *Client) GetGame(ctx context.Context, name string) (*room.Game, error) {
	var g room.Game
	if err := c.do(ctx, http.MethodGet, "/games/"+name, nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	raw, err := c.roundTrip(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	var env dataEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func (c *Client) doList(ctx context.Context, path string, out any) error {
	raw, err := c.roundTrip(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	var env listEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(env.Results, out); err != nil {
		return fmt.Errorf("decode response results: %w", err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.creds.UserID != "" {
		req.Header.Set("X-User-Id", c.creds.UserID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var env errorEnvelope
		if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
			return nil, &APIError{Status: resp.StatusCode, Message: env.Error.Message}
		}
		return nil, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return raw, nil
}
