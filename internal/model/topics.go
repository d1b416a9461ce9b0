package model

import "fmt"

// Application destinations handled by the server.
const (
	AppAuth      = "/app/auth"
	AppHeartbeat = "/app/heartbeat"
	AppJoinRoom  = "/app/room/join"
	AppLeaveRoom = "/app/room/leave"
	AppSetAdmin  = "/app/room/setAdmin"
	AppSetDealer = "/app/game/setDealer"
	AppReady     = "/app/game/ready"
	AppStart     = "/app/game/start"
	AppBet       = "/app/game/bet"
	AppDeal      = "/app/game/deal"
	AppReveal    = "/app/game/reveal"
	AppSettle    = "/app/game/settle"
	AppFinish    = "/app/game/finish"
)

// UserQueue receives replies addressed to the authenticated user.
const UserQueue = "/user/queue/message"

// Game events broadcast under a room.
const (
	EventReadyCountdown  = "ready/countdown"
	EventStart           = "start"
	EventBet             = "bet"
	EventDeal            = "deal"
	EventReveal          = "reveal"
	EventRevealCountdown = "reveal/countdown"
	EventSettle          = "settle"
	EventFinish          = "finish"
)

// GameEvents lists every game event, in play order.
var GameEvents = []string{
	EventReadyCountdown,
	EventStart,
	EventBet,
	EventDeal,
	EventReveal,
	EventRevealCountdown,
	EventSettle,
	EventFinish,
}

// RoomUpdateTopic carries RoomUpdate broadcasts.
func RoomUpdateTopic(roomID int64) string {
	return fmt.Sprintf("/topic/room/%d/update", roomID)
}

// DealerChangedTopic announces a new dealer.
func DealerChangedTopic(roomID int64) string {
	return fmt.Sprintf("/topic/room/%d/dealer/changed", roomID)
}

// GameTopic carries one game event for a room.
func GameTopic(roomID int64, event string) string {
	return fmt.Sprintf("/topic/room/%d/game/%s", roomID, event)
}

// RoomTopics returns every broadcast topic of a room.
func RoomTopics(roomID int64) []string {
	topics := []string{RoomUpdateTopic(roomID), DealerChangedTopic(roomID)}
	for _, ev := range GameEvents {
		topics = append(topics, GameTopic(roomID, ev))
	}
	return topics
}
