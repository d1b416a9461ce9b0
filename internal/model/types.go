package model

import "fmt"

// CodeOK is the Envelope code of a successful response.
const CodeOK = 200

// Envelope wraps every REST response and bus broadcast.
type Envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// OK reports whether the envelope carries a successful result.
func (e Envelope[T]) OK() bool {
	return e.Code == CodeOK
}

// Err returns nil for a successful envelope and an error carrying the
// server message otherwise.
func (e Envelope[T]) Err() error {
	if e.OK() {
		return nil
	}
	if e.Message == "" {
		return fmt.Errorf("server returned code %d", e.Code)
	}
	return fmt.Errorf("server returned code %d: %s", e.Code, e.Message)
}

// -----------------------------------------------------------------------------
// Entities
// -----------------------------------------------------------------------------

// User is a player account. The password is never sent by the server.
type User struct {
	ID        int64  `json:"id"`
	Phone     string `json:"phone"`
	Nickname  string `json:"nickname"`
	Avatar    string `json:"avatar,omitempty"`
	Balance   int    `json:"balance"` // Global points balance
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// RoomStatus is the lifecycle of a room.
type RoomStatus int

const (
	RoomWaiting  RoomStatus = 0
	RoomPlaying  RoomStatus = 1
	RoomFinished RoomStatus = 2
)

func (s RoomStatus) String() string {
	switch s {
	case RoomWaiting:
		return "waiting"
	case RoomPlaying:
		return "playing"
	case RoomFinished:
		return "finished"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Room is a game table.
type Room struct {
	ID               int64      `json:"id"`
	RoomCode         string     `json:"roomCode"`
	CreatorID        int64      `json:"creatorId"`
	AdminID          int64      `json:"adminId"`
	MaxRounds        int        `json:"maxRounds"`
	CurrentRound     int        `json:"currentRound"`
	EnabledCardTypes string     `json:"enabledCardTypes,omitempty"` // JSON array of card type names
	Status           RoomStatus `json:"status"`
	CreatorNickname  string     `json:"creatorNickname,omitempty"`
	PlayerCount      int        `json:"playerCount,omitempty"`
	CreatedAt        string     `json:"createdAt,omitempty"`
	UpdatedAt        string     `json:"updatedAt,omitempty"`
}

// RoomPlayer is a seat in a room.
type RoomPlayer struct {
	ID         int64  `json:"id"`
	RoomID     int64  `json:"roomId"`
	UserID     int64  `json:"userId"`
	SeatNumber int    `json:"seatNumber"` // 1-10
	IsDealer   int    `json:"isDealer"`   // 0 or 1
	TotalScore int    `json:"totalScore"`
	Nickname   string `json:"nickname,omitempty"`
	IsOnline   *bool  `json:"isOnline,omitempty"`
	IsReady    *bool  `json:"isReady,omitempty"`
	JoinedAt   string `json:"joinedAt,omitempty"`
}

// Dealer reports whether the player is the current dealer.
func (p RoomPlayer) Dealer() bool {
	return p.IsDealer == 1
}

// RoomUpdate is broadcast on RoomUpdateTopic whenever seats change.
type RoomUpdate struct {
	Room    Room         `json:"room"`
	Players []RoomPlayer `json:"players"`
}

// -----------------------------------------------------------------------------
// Requests
// -----------------------------------------------------------------------------

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

// LoginResponse is the data of a successful login.
type LoginResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// JoinRoom is sent to AppJoinRoom.
type JoinRoom struct {
	UserID   int64  `json:"userId"`
	RoomCode string `json:"roomCode"`
}

// LeaveRoom is sent to AppLeaveRoom.
type LeaveRoom struct {
	UserID   int64  `json:"userId"`
	RoomCode string `json:"roomCode"`
}

// Ready is sent to AppReady.
type Ready struct {
	UserID int64 `json:"userId"`
	RoomID int64 `json:"roomId"`
}

// Bet is sent to AppBet.
type Bet struct {
	UserID       int64 `json:"userId"`
	GameRecordID int64 `json:"gameRecordId"`
	BetAmount    int   `json:"betAmount"`
}
