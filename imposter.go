// Imposterbox
//
// A "find the imposter" word game. Each round every player except the
// imposters is shown a secret word from the room's category. Players take
// turns giving a one-word hint, discuss, then vote on who the imposter is.
// Imposters score by surviving the vote or guessing the word; everyone
// else scores by voting an imposter out. Five rounds, highest score wins.
//
// Features:
// - One room per short code, joinable by code or by long share link
// - WebSocket per client at /ws; clients identified by cookie (playerID)
// - First connection creates the room and becomes host
// - Host picks the category, starts games, opens voting, advances rounds
// - Roles and the secret word are masked per recipient, never broadcast
// - Disconnected players keep their seat and score; host is handed off
// - Rooms are destroyed when the last connected player leaves
// - In-browser QR button to share the room, backed by go-qrcode

package main

import (
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients
type ClientMessage struct {
	Type       string `json:"type"`                 // "create-room", "join-room", "set-category", "start-game", "submit-hint", "send-message", "start-voting", "submit-vote", "imposter-guess", "next-round", "play-again"
	PlayerName string `json:"playerName,omitempty"` // create-room / join-room
	Code       string `json:"code,omitempty"`       // join-room
	Category   string `json:"category,omitempty"`   // create-room / set-category
	Hint       string `json:"hint,omitempty"`       // submit-hint
	Message    string `json:"message,omitempty"`    // send-message
	VotedID    string `json:"votedId,omitempty"`    // submit-vote
	Guess      string `json:"guess,omitempty"`      // imposter-guess
}

// Sent to the originating client only when an operation fails.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RoomCreatedMessage struct {
	Type     string `json:"type"` // "room-created"
	Code     string `json:"code"`
	ShareID  string `json:"shareId"`
	PlayerID string `json:"playerId"`
	IsHost   bool   `json:"isHost"`
}

type RoomJoinedMessage struct {
	Type     string       `json:"type"` // "room-joined"
	Code     string       `json:"code"`
	ShareID  string       `json:"shareId"`
	PlayerID string       `json:"playerId"`
	IsHost   bool         `json:"isHost"`
	Players  []ScoreEntry `json:"players"`
	Category string       `json:"category"`
}

type PlayerJoinedMessage struct {
	Type    string       `json:"type"` // "player-joined"
	Players []ScoreEntry `json:"players"`
}

type PlayerLeftMessage struct {
	Type      string       `json:"type"` // "player-left"
	PlayerID  string       `json:"playerId"`
	Players   []ScoreEntry `json:"players"`
	NewHostID string       `json:"newHostId"`
}

type CategoryChangedMessage struct {
	Type     string `json:"type"` // "category-changed"
	Category string `json:"category"`
}

type PlayerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoundMessage is individually masked: imposters get IsImposter=true and a
// null word, everyone else gets the word. Never sent identically to all.
type RoundMessage struct {
	Type          string      `json:"type"` // "game-started" or "round-started"
	IsImposter    bool        `json:"isImposter"`
	Word          *string     `json:"word"`
	Players       []PlayerRef `json:"players"`
	CurrentTurnID string      `json:"currentTurnId"`
	Round         int         `json:"round"`
	TotalRounds   int         `json:"totalRounds"`
	Category      string      `json:"category,omitempty"`
	HintTime      int         `json:"hintTime"`
}

type HintSubmittedMessage struct {
	Type         string `json:"type"` // "hint-submitted"
	PlayerID     string `json:"playerId"`
	PlayerName   string `json:"playerName"`
	Hint         string `json:"hint"`
	NextPlayerID string `json:"nextPlayerId"`
}

type AllHintsCompleteMessage struct {
	Type  string `json:"type"` // "all-hints-complete"
	Hints []Hint `json:"hints"`
}

type DiscussionStartedMessage struct {
	Type     string `json:"type"` // "discussion-started"
	Duration int    `json:"duration"`
}

type NewChatMessage struct {
	Type    string  `json:"type"` // "new-message"
	Message Message `json:"message"`
}

type VotingStartedMessage struct {
	Type     string      `json:"type"` // "voting-started"
	Duration int         `json:"duration"`
	Players  []PlayerRef `json:"players"`
}

type VoteSubmittedMessage struct {
	Type         string `json:"type"` // "vote-submitted"
	VoteCount    int    `json:"voteCount"`
	TotalPlayers int    `json:"totalPlayers"`
}

type VoteResultsMessage struct {
	Type string `json:"type"` // "vote-results"
	*RevealResult
}

type ImposterGuessedMessage struct {
	Type       string       `json:"type"` // "imposter-guessed"
	Correct    bool         `json:"correct"`
	Guess      string       `json:"guess"`
	ActualWord string       `json:"actualWord"`
	Scores     []ScoreEntry `json:"scores"`
}

type GameEndedMessage struct {
	Type string `json:"type"` // "game-ended"
	*GameEnd
}

type GameResetMessage struct {
	Type    string       `json:"type"` // "game-reset"
	Players []ScoreEntry `json:"players"`
}

// Gateway-level failures for requests that arrive in the wrong phase.
var (
	errCannotHintNow = &GameError{Code: "invalid_state", Message: "Cannot submit hint now"}
	errCannotVoteNow = &GameError{Code: "invalid_state", Message: "Cannot vote now"}
)

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string

	// hub is set by readPump once the client has created or joined a room.
	hub *Hub

	mu     sync.Mutex
	closed bool
}

// enqueue places a message on the client's send queue unless the queue is
// full or already shut down. Both hub and readPump goroutines send through
// here, so closing is guarded.
func (c *Client) enqueue(msg any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) sendError(gerr *GameError) {
	c.enqueue(ErrorMessage{Type: "error", Code: gerr.Code, Message: gerr.Message})
}

type joinRequest struct {
	client *Client
	name   string
	reply  chan *GameError
}

type event struct {
	client *Client
	msg    ClientMessage
}

// Hub is the single actor for one room: every mutation of the room runs
// inside its run loop, so engine operations never interleave.
type Hub struct {
	code    string
	room    *Room
	clients map[*Client]bool

	joins  chan joinRequest
	unreg  chan *Client
	events chan event
	done   chan struct{}
}

func newHub(room *Room, creator *Client) *Hub {
	h := &Hub{
		code:    room.Code,
		room:    room,
		clients: make(map[*Client]bool),
		joins:   make(chan joinRequest),
		unreg:   make(chan *Client),
		events:  make(chan event, 64),
		done:    make(chan struct{}),
	}
	h.clients[creator] = true
	return h
}

func (h *Hub) run(g *Gateway) {
	for {
		select {
		case jr := <-h.joins:
			h.handleJoin(g, jr)

		case c := <-h.unreg:
			if h.handleDisconnect(g, c) {
				return
			}

		case ev := <-h.events:
			h.handleEvent(g, ev)
		}
	}
}

func (h *Hub) sendTo(c *Client, msg any) {
	h.enqueueOrEvict(c, msg)
}

func (h *Hub) enqueueOrEvict(c *Client, msg any) bool {
	if c.enqueue(msg) {
		return true
	}
	delete(h.clients, c)
	c.shutdown()
	return false
}

func (h *Hub) broadcast(msg any) {
	for client := range h.clients {
		h.enqueueOrEvict(client, msg)
	}
}

func (h *Hub) broadcastExcept(skip *Client, msg any) {
	for client := range h.clients {
		if client == skip {
			continue
		}
		h.enqueueOrEvict(client, msg)
	}
}

// broadcastRoundStart fans out game-started/round-started with per-recipient
// masking: only imposters learn they are the imposter, and only
// non-imposters learn the word.
func (h *Hub) broadcastRoundStart(msgType string, rs *RoundStart, category string) {
	players := make([]PlayerRef, 0, len(rs.Players))
	for _, p := range rs.Players {
		players = append(players, PlayerRef{ID: p.ID, Name: p.Name})
	}

	for client := range h.clients {
		isImposter := false
		for _, id := range rs.ImposterIDs {
			if id == client.playerID {
				isImposter = true
				break
			}
		}

		var word *string
		if !isImposter {
			w := rs.Word
			word = &w
		}

		h.sendTo(client, RoundMessage{
			Type:          msgType,
			IsImposter:    isImposter,
			Word:          word,
			Players:       players,
			CurrentTurnID: rs.FirstTurnID,
			Round:         rs.Round,
			TotalRounds:   rs.TotalRounds,
			Category:      category,
			HintTime:      h.room.Settings.HintTime,
		})
	}
}

func (h *Hub) handleJoin(g *Gateway, jr joinRequest) {
	room, gerr := g.registry.JoinRoom(h.code, jr.client.playerID, jr.name)
	if gerr != nil {
		jr.reply <- gerr
		return
	}

	h.clients[jr.client] = true
	jr.reply <- nil

	h.sendTo(jr.client, RoomJoinedMessage{
		Type:     "room-joined",
		Code:     room.Code,
		ShareID:  room.ShareID,
		PlayerID: jr.client.playerID,
		IsHost:   room.HostID == jr.client.playerID,
		Players:  scoreboard(room.ConnectedPlayers()),
		Category: room.Category,
	})

	h.broadcastExcept(jr.client, PlayerJoinedMessage{
		Type:    "player-joined",
		Players: scoreboard(room.ConnectedPlayers()),
	})

	logf(g.cfg, "GAMES: Player %q joined %s", jr.name, h.code)
}

// handleDisconnect drops the client and, unless another tab holds the same
// playerID, marks the player disconnected. Returns true when the room was
// destroyed and the hub should stop.
func (h *Hub) handleDisconnect(g *Gateway, c *Client) bool {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.shutdown()
	}

	for client := range h.clients {
		if client.playerID == c.playerID {
			return false
		}
	}

	room, destroyed := g.registry.RemovePlayer(c.playerID)

	if destroyed {
		g.removeHub(h.code)
		close(h.done)
		for client := range h.clients {
			client.shutdown()
			_ = client.conn.Close()
			delete(h.clients, client)
		}
		logf(g.cfg, "GAMES: Destroyed empty room %s", h.code)
		return true
	}

	if room != nil {
		h.broadcast(PlayerLeftMessage{
			Type:      "player-left",
			PlayerID:  c.playerID,
			Players:   scoreboard(room.ConnectedPlayers()),
			NewHostID: room.HostID,
		})
		logf(g.cfg, "GAMES: Player %s left %s", c.playerID, h.code)
	}

	return false
}

func (h *Hub) handleEvent(g *Gateway, ev event) {
	c := ev.client
	msg := ev.msg
	room := h.room

	isHost := room.HostID == c.playerID

	switch msg.Type {
	case "set-category":
		if !isHost {
			c.sendError(ErrNotAuthorized)
			return
		}
		if gerr := setCategory(room, msg.Category); gerr != nil {
			c.sendError(gerr)
			return
		}
		h.broadcast(CategoryChangedMessage{Type: "category-changed", Category: room.Category})

	case "start-game":
		if !isHost {
			c.sendError(ErrNotAuthorized)
			return
		}
		rs, gerr := startGame(room)
		if gerr != nil {
			c.sendError(gerr)
			return
		}
		h.broadcastRoundStart("game-started", rs, room.Category)
		logf(g.cfg, "GAMES: Started game in %s (%d players, %d imposters)", h.code, len(rs.Players), len(rs.ImposterIDs))

	case "submit-hint":
		if room.State != StateHints {
			c.sendError(errCannotHintNow)
			return
		}
		result, gerr := submitHint(room, c.playerID, msg.Hint)
		if gerr != nil {
			c.sendError(gerr)
			return
		}
		if result.AllHintsComplete {
			h.broadcast(AllHintsCompleteMessage{Type: "all-hints-complete", Hints: result.Hints})
			h.broadcast(DiscussionStartedMessage{Type: "discussion-started", Duration: room.Settings.DiscussionTime})
		} else {
			h.broadcast(HintSubmittedMessage{
				Type:         "hint-submitted",
				PlayerID:     result.Hint.PlayerID,
				PlayerName:   result.Hint.PlayerName,
				Hint:         result.Hint.Hint,
				NextPlayerID: result.NextPlayerID,
			})
		}

	case "send-message":
		if chat := addMessage(room, c.playerID, msg.Message); chat != nil {
			h.broadcast(NewChatMessage{Type: "new-message", Message: *chat})
		}

	case "start-voting":
		if !isHost {
			c.sendError(ErrNotAuthorized)
			return
		}
		startVoting(room)
		players := make([]PlayerRef, 0)
		for _, p := range room.ConnectedPlayers() {
			players = append(players, PlayerRef{ID: p.ID, Name: p.Name})
		}
		h.broadcast(VotingStartedMessage{
			Type:     "voting-started",
			Duration: room.Settings.VoteTime,
			Players:  players,
		})

	case "submit-vote":
		if room.State != StateVoting {
			c.sendError(errCannotVoteNow)
			return
		}
		result, gerr := submitVote(room, c.playerID, msg.VotedID)
		if gerr != nil {
			c.sendError(gerr)
			return
		}
		h.broadcast(VoteSubmittedMessage{
			Type:         "vote-submitted",
			VoteCount:    result.VoteCount,
			TotalPlayers: result.TotalPlayers,
		})
		if result.AllVotesIn {
			reveal := calculateResults(room)
			h.broadcast(VoteResultsMessage{Type: "vote-results", RevealResult: reveal})
			logf(g.cfg, "GAMES: Round %d reveal in %s (caught: %t)", room.CurrentRound, h.code, reveal.ImposterCaught)
		}

	case "imposter-guess":
		result, gerr := imposterGuess(room, c.playerID, msg.Guess)
		if gerr != nil {
			c.sendError(gerr)
			return
		}
		h.broadcast(ImposterGuessedMessage{
			Type:       "imposter-guessed",
			Correct:    result.Correct,
			Guess:      msg.Guess,
			ActualWord: result.ActualWord,
			Scores:     scoreboard(room.ConnectedPlayers()),
		})

	case "next-round":
		if !isHost {
			c.sendError(ErrNotAuthorized)
			return
		}
		rs, end := nextRound(room)
		if end != nil {
			h.broadcast(GameEndedMessage{Type: "game-ended", GameEnd: end})
			logf(g.cfg, "GAMES: Game ended in %s, winner %q", h.code, end.Winner.Name)
		} else {
			h.broadcastRoundStart("round-started", rs, "")
		}

	case "play-again":
		if !isHost {
			c.sendError(ErrNotAuthorized)
			return
		}
		players := resetGame(room)
		h.broadcast(GameResetMessage{Type: "game-reset", Players: scoreboard(players)})

	default:
		// ignore unknown types
	}
}

// Gateway resolves inbound websocket traffic to rooms. The registry and
// the hub table are the only shared state; everything per-room happens in
// that room's hub goroutine.
type Gateway struct {
	cfg      *Config
	registry *Registry

	mu   sync.Mutex
	hubs map[string]*Hub
}

func newGateway(cfg *Config, registry *Registry) *Gateway {
	return &Gateway{
		cfg:      cfg,
		registry: registry,
		hubs:     make(map[string]*Hub),
	}
}

func (g *Gateway) hub(code string) *Hub {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.hubs[strings.ToUpper(code)]
}

func (g *Gateway) removeHub(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.hubs, code)
}

func (g *Gateway) settings() Settings {
	return Settings{
		HintTime:       int(g.cfg.hintTime.Seconds()),
		DiscussionTime: int(g.cfg.discussionTime.Seconds()),
		VoteTime:       int(g.cfg.voteTime.Seconds()),
		ImposterCount:  g.cfg.imposters,
	}
}

// createRoom runs on the readPump goroutine. The room is not visible to
// any other goroutine until the hub is registered, so touching it here is
// safe.
func (g *Gateway) createRoom(c *Client, msg ClientMessage) {
	room := g.registry.CreateRoom(c.playerID, msg.PlayerName, g.settings())
	if msg.Category != "" && validCategory(msg.Category) {
		room.Category = msg.Category
	}

	hub := newHub(room, c)

	g.mu.Lock()
	g.hubs[room.Code] = hub
	g.mu.Unlock()

	c.hub = hub
	go hub.run(g)

	c.enqueue(RoomCreatedMessage{
		Type:     "room-created",
		Code:     room.Code,
		ShareID:  room.ShareID,
		PlayerID: c.playerID,
		IsHost:   true,
	})

	logf(g.cfg, "GAMES: Player %q created room %s", msg.PlayerName, room.Code)
}

// joinRoom runs on the readPump goroutine and hands the membership edit to
// the room's hub, waiting on a reply so c.hub is only set on success.
func (g *Gateway) joinRoom(c *Client, msg ClientMessage) {
	hub := g.hub(msg.Code)
	if hub == nil {
		c.sendError(ErrRoomNotFound)
		return
	}

	jr := joinRequest{client: c, name: msg.PlayerName, reply: make(chan *GameError, 1)}

	select {
	case hub.joins <- jr:
	case <-hub.done:
		c.sendError(ErrRoomNotFound)
		return
	}

	if gerr := <-jr.reply; gerr != nil {
		c.sendError(gerr)
		return
	}

	c.hub = hub
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "imposterbox_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

func serveWS(cfg *Config, g *Gateway) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		playerID := getOrSetPlayerID(w, r)
		if playerID == "" {
			http.Error(w, "unable to assign player id", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 8),
			playerID: playerID,
		}

		go client.writePump()
		client.readPump(g)
	}
}

func (c *Client) readPump(g *Gateway) {
	defer func() {
		if c.hub != nil {
			select {
			case c.hub.unreg <- c:
			case <-c.hub.done:
			}
		}
		c.shutdown()
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "create-room":
			if c.hub == nil {
				g.createRoom(c, msg)
			}
		case "join-room":
			if c.hub == nil {
				g.joinRoom(c, msg)
			}
		default:
			if c.hub == nil {
				c.sendError(ErrRoomNotFound)
				continue
			}
			select {
			case c.hub.events <- event{client: c, msg: msg}:
			case <-c.hub.done:
				c.hub = nil
				c.sendError(ErrRoomNotFound)
			}
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the room's share URL using
// go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	shareID := ps.ByName("shareid")
	if shareID == "" {
		http.Error(w, "missing share id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /join/:shareid/qr; strip trailing "/qr" to get the join URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// ---- Static file paths ----

//go:embed imposter/index.html
var indexHTML []byte

//go:embed imposter/app.css
var imposterCSS []byte

//go:embed imposter/app.js
var imposterJS []byte

func getIndexHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		_, _ = w.Write(indexHTML)
	}
}

func getCssHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(imposterCSS)
	}
}

func getJsHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(imposterJS)
	}
}

// registerImposterGame sets up routes so that:
//   - /                       → HTML client (create/join screen)
//   - /join/:shareid          → HTML client, deep-link join flow
//   - /join/:shareid/qr       → PNG QR code for that share URL
//   - /ws                     → per-client WebSocket
//   - /api/room/:shareid      → share-token room lookup (JSON)
//   - /api/categories         → word bank categories (JSON)
func registerImposterGame(cfg *Config, registry *Registry, mux *httprouter.Router) {
	g := newGateway(cfg, registry)

	mux.GET(cfg.prefix+"/", getIndexHandler(cfg))
	mux.GET(cfg.prefix+"/join/:shareid", getIndexHandler(cfg))
	mux.GET(cfg.prefix+"/join/:shareid/qr", qrHandler)

	mux.GET(cfg.prefix+"/assets/imposter/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/imposter/app.js", getJsHandler(cfg))

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, g))

	mux.GET(cfg.prefix+"/api/room/:shareid", serveRoomLookup(cfg, registry))
	mux.GET(cfg.prefix+"/api/categories", serveCategories(cfg))
}
