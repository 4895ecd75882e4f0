/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Game engine for the imposter word game. Each round, every player except
// the imposters learns a secret word drawn from the room's category. Players
// take turns giving one-word hints, discuss, then vote on who the imposter
// is. Imposters score by escaping the vote or guessing the word; everyone
// else scores by voting an imposter out.
//
// Every operation here mutates a single Room and returns a tagged result
// value (or a *GameError, leaving the room untouched). Callers are expected
// to hold exclusive access to the room for the duration of one call; the
// gateway guarantees that by running all operations for a room inside its
// hub goroutine.

package main

import (
	"sort"
	"strings"
	"time"
)

type ScoreEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// RoundStart describes a freshly started round. The word and imposter set
// must never leave the server as-is: the gateway masks them per recipient.
type RoundStart struct {
	Round       int
	TotalRounds int
	Category    string
	Word        string
	ImposterIDs []string
	Players     []*Player
	FirstTurnID string
}

type HintResult struct {
	Hint             Hint
	NextPlayerID     string
	AllHintsComplete bool
	Hints            []Hint
}

type VoteResult struct {
	VoteCount    int
	TotalPlayers int
	AllVotesIn   bool
}

type RevealResult struct {
	VoteCounts     map[string]int `json:"voteCounts"`
	VotedOut       string         `json:"votedOut"`
	ImposterIDs    []string       `json:"imposterIds"`
	ImposterNames  []string       `json:"imposterNames"`
	ImposterCaught bool           `json:"imposterCaught"`
	Word           string         `json:"word"`
	Scores         []ScoreEntry   `json:"scores"`
}

type GuessResult struct {
	Correct    bool
	ActualWord string
}

type GameEnd struct {
	FinalScores []ScoreEntry `json:"finalScores"`
	Winner      ScoreEntry   `json:"winner"`
}

// startGame validates the lobby, zeroes all scores, and starts round one.
func startGame(room *Room) (*RoundStart, *GameError) {
	players := room.ConnectedPlayers()

	if len(players) < 3 {
		return nil, ErrNotEnoughPlayers
	}

	if maxImposters := len(players) / 2; room.Settings.ImposterCount > maxImposters {
		room.Settings.ImposterCount = maxImposters
	}

	room.CurrentRound = 1
	for _, p := range room.Players {
		p.Score = 0
	}

	return startRound(room), nil
}

// startRound reshuffles roles, draws a fresh word, and resets per-round
// state. Imposter count is max(1, min(configured, floor(connected/2))).
func startRound(room *Room) *RoundStart {
	players := room.ConnectedPlayers()

	imposterCount := room.Settings.ImposterCount
	if imposterCount < 1 {
		imposterCount = 1
	}
	if maxImposters := len(players) / 2; imposterCount > maxImposters {
		imposterCount = maxImposters
	}
	if imposterCount < 1 {
		imposterCount = 1
	}

	shuffled := make([]string, 0, len(players))
	for _, p := range players {
		shuffled = append(shuffled, p.ID)
	}

	// Fisher-Yates shuffle using crypto/rand
	for i := len(shuffled) - 1; i > 0; i-- {
		j := randomIndex(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	room.setState(StateHints)
	room.CurrentWord = randomWord(room.Category)
	room.ImposterIDs = shuffled[:imposterCount]
	room.CurrentTurnIndex = 0
	room.Hints = nil
	room.Votes = nil
	room.Messages = nil

	firstTurnID := ""
	if len(players) > 0 {
		firstTurnID = players[0].ID
	}

	return &RoundStart{
		Round:       room.CurrentRound,
		TotalRounds: room.TotalRounds,
		Category:    room.Category,
		Word:        room.CurrentWord,
		ImposterIDs: room.ImposterIDs,
		Players:     players,
		FirstTurnID: firstTurnID,
	}
}

// submitHint records the current player's hint and advances the turn,
// moving the room into discussion once every connected player has spoken.
func submitHint(room *Room, playerID, hint string) (*HintResult, *GameError) {
	players := room.ConnectedPlayers()

	if room.CurrentTurnIndex >= len(players) || players[room.CurrentTurnIndex].ID != playerID {
		return nil, ErrNotYourTurn
	}

	entry := Hint{
		PlayerID:   playerID,
		PlayerName: players[room.CurrentTurnIndex].Name,
		Hint:       strings.TrimSpace(hint),
	}
	room.Hints = append(room.Hints, entry)

	room.CurrentTurnIndex++

	if room.CurrentTurnIndex >= len(players) {
		room.setState(StateDiscussion)
		return &HintResult{
			Hint:             entry,
			AllHintsComplete: true,
			Hints:            room.Hints,
		}, nil
	}

	return &HintResult{
		Hint:         entry,
		NextPlayerID: players[room.CurrentTurnIndex].ID,
	}, nil
}

// addMessage appends a discussion message, silently dropping input from
// identifiers that are not room members.
func addMessage(room *Room, playerID, text string) *Message {
	player := room.FindPlayer(playerID)
	if player == nil {
		return nil
	}

	msg := Message{
		PlayerID:   playerID,
		PlayerName: player.Name,
		Message:    strings.TrimSpace(text),
		Timestamp:  time.Now().UnixMilli(),
	}
	room.Messages = append(room.Messages, msg)

	return &msg
}

func startVoting(room *Room) {
	room.setState(StateVoting)
	room.Votes = nil
}

// submitVote records one vote per voter per round. Once every connected
// player has voted, AllVotesIn signals the caller to tally.
func submitVote(room *Room, voterID, votedID string) (*VoteResult, *GameError) {
	for _, v := range room.Votes {
		if v.VoterID == voterID {
			return nil, ErrAlreadyVoted
		}
	}

	players := room.ConnectedPlayers()

	valid := false
	for _, p := range players {
		if p.ID == votedID {
			valid = true
			break
		}
	}
	if !valid {
		return nil, ErrInvalidTarget
	}

	room.Votes = append(room.Votes, Vote{VoterID: voterID, VotedID: votedID})

	return &VoteResult{
		VoteCount:    len(room.Votes),
		TotalPlayers: len(players),
		AllVotesIn:   len(room.Votes) >= len(players),
	}, nil
}

// calculateResults tallies the round's votes, applies scoring, and moves
// the room into reveal.
//
// The voted-out player is the first target, in vote-arrival order, to hold
// the strictly highest final count. Ties therefore favor whichever target
// was voted for first, not the most recent — this reproduces the original
// tally's iteration-order behavior and is deliberately kept.
func calculateResults(room *Room) *RevealResult {
	players := room.ConnectedPlayers()

	voteCounts := make(map[string]int, len(room.Votes))
	arrival := make([]string, 0, len(room.Votes))
	for _, v := range room.Votes {
		if _, seen := voteCounts[v.VotedID]; !seen {
			arrival = append(arrival, v.VotedID)
		}
		voteCounts[v.VotedID]++
	}

	maxVotes := 0
	votedOut := ""
	for _, id := range arrival {
		if voteCounts[id] > maxVotes {
			maxVotes = voteCounts[id]
			votedOut = id
		}
	}

	imposterCaught := votedOut != "" && room.IsImposter(votedOut)

	// Imposters score as a group for escaping the round; non-imposters
	// score individually for voting for any imposter.
	for _, p := range players {
		if room.IsImposter(p.ID) {
			if !imposterCaught {
				p.Score += 15
			}
			continue
		}
		for _, v := range room.Votes {
			if v.VoterID == p.ID && room.IsImposter(v.VotedID) {
				p.Score += 10
				break
			}
		}
	}

	room.setState(StateReveal)

	imposterNames := make([]string, 0, len(room.ImposterIDs))
	for _, p := range players {
		if room.IsImposter(p.ID) {
			imposterNames = append(imposterNames, p.Name)
		}
	}

	return &RevealResult{
		VoteCounts:     voteCounts,
		VotedOut:       votedOut,
		ImposterIDs:    room.ImposterIDs,
		ImposterNames:  imposterNames,
		ImposterCaught: imposterCaught,
		Word:           room.CurrentWord,
		Scores:         scoreboard(players),
	}
}

// imposterGuess awards a 25 point bonus for a correct word guess during
// reveal. Guessing never changes the room state.
func imposterGuess(room *Room, playerID, guess string) (*GuessResult, *GameError) {
	if !room.IsImposter(playerID) {
		return nil, ErrNotAnImposter
	}

	correct := strings.EqualFold(strings.TrimSpace(guess), room.CurrentWord)

	if correct {
		if imposter := room.FindPlayer(playerID); imposter != nil {
			imposter.Score += 25
		}
	}

	return &GuessResult{
		Correct:    correct,
		ActualWord: room.CurrentWord,
	}, nil
}

// nextRound starts the next round, or ends the game after the final one.
// Exactly one of the two results is non-nil.
func nextRound(room *Room) (*RoundStart, *GameEnd) {
	if room.CurrentRound >= room.TotalRounds {
		return nil, endGame(room)
	}

	room.CurrentRound++
	return startRound(room), nil
}

// endGame ranks connected players by score, descending, stable on ties so
// the original join order breaks them.
func endGame(room *Room) *GameEnd {
	room.setState(StateEnded)

	ranked := append([]*Player(nil), room.ConnectedPlayers()...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	finalScores := scoreboard(ranked)

	winner := ScoreEntry{}
	if len(finalScores) > 0 {
		winner = finalScores[0]
	}

	return &GameEnd{
		FinalScores: finalScores,
		Winner:      winner,
	}
}

// resetGame returns the room to the lobby for another game, keeping the
// membership intact. Distinct from room creation.
func resetGame(room *Room) []*Player {
	room.setState(StateWaiting)
	room.CurrentRound = 0
	room.CurrentWord = ""
	room.ImposterIDs = nil
	room.CurrentTurnIndex = 0
	room.Hints = nil
	room.Votes = nil
	room.Messages = nil
	for _, p := range room.Players {
		p.Score = 0
	}

	return room.ConnectedPlayers()
}

// setCategory changes the room's word category, allowed only in the lobby
// and only to a category the word bank knows.
func setCategory(room *Room, category string) *GameError {
	if room.State != StateWaiting {
		return ErrGameInProgress
	}
	if !validCategory(category) {
		return ErrUnknownCategory
	}

	room.Category = category
	return nil
}

func scoreboard(players []*Player) []ScoreEntry {
	entries := make([]ScoreEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, ScoreEntry{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	return entries
}
