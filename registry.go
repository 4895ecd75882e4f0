/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type RoomState string

const (
	StateWaiting    RoomState = "waiting"
	StateHints      RoomState = "hints"
	StateDiscussion RoomState = "discussion"
	StateVoting     RoomState = "voting"
	StateReveal     RoomState = "reveal"
	StateEnded      RoomState = "ended"
)

// Player stays in Room.Players after a disconnect, with Connected set to
// false, so scores, host transfer, and turn order survive transient drops.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

type Hint struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Hint       string `json:"hint"`
}

type Vote struct {
	VoterID string `json:"voterId"`
	VotedID string `json:"votedId"`
}

type Message struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"`
}

// Settings carries advisory per-phase durations, in seconds. The server
// never enforces them; they are broadcast so clients can render countdowns.
type Settings struct {
	HintTime       int `json:"hintTime"`
	DiscussionTime int `json:"discussionTime"`
	VoteTime       int `json:"voteTime"`
	ImposterCount  int `json:"imposterCount"`
}

// Room is one bounded-lifetime game session. All mutation happens inside
// the room's hub goroutine; the registry only guards its lookup tables.
//
// State is the exception: the share-lookup HTTP handler reads it from
// outside the hub, so transitions go through setState and cross-goroutine
// reads through CurrentState.
type Room struct {
	Code             string
	ShareID          string
	HostID           string
	Players          []*Player
	stateMu          sync.Mutex
	State            RoomState
	CurrentRound     int
	TotalRounds      int
	Category         string
	CurrentWord      string
	ImposterIDs      []string
	CurrentTurnIndex int
	Hints            []Hint
	Votes            []Vote
	Messages         []Message
	Settings         Settings
	CreatedAt        time.Time
}

func (room *Room) setState(state RoomState) {
	room.stateMu.Lock()
	room.State = state
	room.stateMu.Unlock()
}

// CurrentState reads the room state safely from outside the hub goroutine.
func (room *Room) CurrentState() RoomState {
	room.stateMu.Lock()
	defer room.stateMu.Unlock()

	return room.State
}

// ConnectedPlayers filters to currently connected players, preserving the
// original join order. This derived view is what turn-taking and the vote
// denominator operate on; the master list is never filtered.
func (room *Room) ConnectedPlayers() []*Player {
	connected := make([]*Player, 0, len(room.Players))
	for _, p := range room.Players {
		if p.Connected {
			connected = append(connected, p)
		}
	}
	return connected
}

func (room *Room) FindPlayer(playerID string) *Player {
	for _, p := range room.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (room *Room) IsImposter(playerID string) bool {
	for _, id := range room.ImposterIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

const totalRounds = 5

// Registry owns the code / shareId / playerId lookup tables. It is
// constructed once at process start and passed explicitly to the gateway;
// there is no package-level room state.
type Registry struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	byShareID  map[string]*Room
	playerRoom map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:      make(map[string]*Room),
		byShareID:  make(map[string]*Room),
		playerRoom: make(map[string]string),
	}
}

// newRoomCode generates a short crypto-random room code and ensures it
// doesn't collide with existing rooms. Assumes reg.mu is held.
func (reg *Registry) newRoomCode() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	for {
		buf := make([]byte, 6)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 6)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		code := string(out)

		if _, exists := reg.rooms[code]; !exists {
			return code
		}
	}
}

// newShareID generates the long opaque identifier used for deep-link joins.
// Assumes reg.mu is held.
func (reg *Registry) newShareID() string {
	for {
		id := uuid.NewString()
		if _, exists := reg.byShareID[id]; !exists {
			return id
		}
	}
}

// CreateRoom creates a room in the waiting state with the creator as host
// and sole member, and registers it under both of its keys.
func (reg *Registry) CreateRoom(hostID, hostName string, settings Settings) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room := &Room{
		Code:    reg.newRoomCode(),
		ShareID: reg.newShareID(),
		HostID:  hostID,
		Players: []*Player{{
			ID:        hostID,
			Name:      hostName,
			Score:     0,
			Connected: true,
		}},
		State:       StateWaiting,
		TotalRounds: totalRounds,
		Category:    defaultCategory,
		Settings:    settings,
		CreatedAt:   time.Now(),
	}

	reg.rooms[room.Code] = room
	reg.byShareID[room.ShareID] = room
	reg.playerRoom[hostID] = room.Code

	return room
}

// JoinRoom adds a player to the room, or reactivates their existing slot
// on rejoin. Fails once the game has left the waiting state.
func (reg *Registry) JoinRoom(code, playerID, playerName string) (*Room, *GameError) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[strings.ToUpper(code)]
	if !ok {
		return nil, ErrRoomNotFound
	}

	if room.State != StateWaiting {
		return nil, ErrGameInProgress
	}

	if existing := room.FindPlayer(playerID); existing != nil {
		existing.Connected = true
		existing.Name = playerName
	} else {
		room.Players = append(room.Players, &Player{
			ID:        playerID,
			Name:      playerName,
			Score:     0,
			Connected: true,
		})
	}

	reg.playerRoom[playerID] = room.Code

	return room, nil
}

func (reg *Registry) GetRoom(code string) *Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return reg.rooms[strings.ToUpper(code)]
}

func (reg *Registry) GetRoomByShareID(shareID string) *Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return reg.byShareID[shareID]
}

// ShareLookup resolves a share token to a {code, state} snapshot for the
// deep-link join flow. Unlike the raw Get* lookups this is safe to call
// from HTTP goroutines while the room's hub is running.
func (reg *Registry) ShareLookup(shareID string) (string, RoomState, bool) {
	reg.mu.RLock()
	room := reg.byShareID[shareID]
	reg.mu.RUnlock()

	if room == nil {
		return "", "", false
	}

	return room.Code, room.CurrentState(), true
}

func (reg *Registry) GetRoomByPlayerID(playerID string) *Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	code, ok := reg.playerRoom[playerID]
	if !ok {
		return nil
	}
	return reg.rooms[code]
}

// RemovePlayer marks the player disconnected and drops their lookup entry.
// The player record itself is retained. If no connected players remain the
// room is destroyed under both keys and (nil, true) is returned; otherwise
// the host role is reassigned if the host just left, and the surviving room
// is returned for the caller to decide what to broadcast.
func (reg *Registry) RemovePlayer(playerID string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	code, ok := reg.playerRoom[playerID]
	if !ok {
		return nil, false
	}
	room := reg.rooms[code]
	if room == nil {
		delete(reg.playerRoom, playerID)
		return nil, false
	}

	if player := room.FindPlayer(playerID); player != nil {
		player.Connected = false
	}

	delete(reg.playerRoom, playerID)

	connected := room.ConnectedPlayers()
	if len(connected) == 0 {
		delete(reg.rooms, room.Code)
		delete(reg.byShareID, room.ShareID)
		return nil, true
	}

	if room.HostID == playerID {
		room.HostID = connected[0].ID
	}

	return room, false
}
