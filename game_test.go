package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitRoles(room *Room) (imposters, others []*Player) {
	for _, p := range room.ConnectedPlayers() {
		if room.IsImposter(p.ID) {
			imposters = append(imposters, p)
		} else {
			others = append(others, p)
		}
	}
	return imposters, others
}

func TestStartGameRequiresThreePlayers(t *testing.T) {
	_, room := newTestRoom(t, "Alice", "Bob")

	rs, gerr := startGame(room)
	assert.Nil(t, rs)
	assert.Equal(t, ErrNotEnoughPlayers, gerr)
	assert.Equal(t, StateWaiting, room.State)
	assert.Equal(t, 0, room.CurrentRound)
}

func TestStartGame(t *testing.T) {
	_, room := newTestRoom(t, "Alice", "Bob", "Carol")
	room.Players[0].Score = 40

	rs, gerr := startGame(room)
	require.Nil(t, gerr)

	assert.Equal(t, StateHints, room.State)
	assert.Equal(t, 1, room.CurrentRound)
	assert.Equal(t, 1, rs.Round)
	assert.Equal(t, 5, rs.TotalRounds)

	for _, p := range room.Players {
		assert.Zero(t, p.Score)
	}
}

func TestStartRoundRoles(t *testing.T) {
	// Scenario A: with 3 players, exactly one imposter is chosen and the
	// word comes from the selected category.
	_, room := newTestRoom(t, "Alice", "Bob", "Carol")

	rs, gerr := startGame(room)
	require.Nil(t, gerr)

	require.Len(t, rs.ImposterIDs, 1)
	assert.Contains(t, wordCategories[room.Category], rs.Word)
	assert.Equal(t, rs.Word, room.CurrentWord)
	assert.Equal(t, 0, room.CurrentTurnIndex)
	assert.Equal(t, "p0", rs.FirstTurnID)
	assert.Empty(t, room.Hints)
	assert.Empty(t, room.Votes)
	assert.Empty(t, room.Messages)

	imposters, others := splitRoles(room)
	assert.Len(t, imposters, 1)
	assert.Len(t, others, 2)
}

func TestImposterCountFormula(t *testing.T) {
	tests := []struct {
		name       string
		players    int
		configured int
		want       int
	}{
		{"three players single imposter", 3, 1, 1},
		{"configured above cap is clamped", 4, 3, 2},
		{"configured below cap is kept", 6, 2, 2},
		{"zero configured still yields one", 3, 0, 1},
		{"five players configured three", 5, 3, 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			names := make([]string, tc.players)
			for i := range names {
				names[i] = string(rune('A' + i))
			}
			_, room := newTestRoom(t, names...)
			room.Settings.ImposterCount = tc.configured
			room.CurrentRound = 1

			rs := startRound(room)
			assert.Len(t, rs.ImposterIDs, tc.want)
		})
	}
}

func TestHintRoundRobin(t *testing.T) {
	// Scenario B: hints submitted in turn order transition the room to
	// discussion exactly once, with all hints in submission order.
	_, room := newTestRoom(t, "Alice", "Bob", "Carol")
	_, gerr := startGame(room)
	require.Nil(t, gerr)

	players := room.ConnectedPlayers()
	hints := []string{"big", "grey", "trunk"}

	for i, p := range players[:2] {
		result, gerr := submitHint(room, p.ID, hints[i])
		require.Nil(t, gerr)
		assert.False(t, result.AllHintsComplete)
		assert.Equal(t, players[i+1].ID, result.NextPlayerID)
		assert.Equal(t, StateHints, room.State)
	}

	result, gerr := submitHint(room, players[2].ID, hints[2])
	require.Nil(t, gerr)
	assert.True(t, result.AllHintsComplete)
	assert.Equal(t, StateDiscussion, room.State)

	require.Len(t, result.Hints, 3)
	for i, h := range result.Hints {
		assert.Equal(t, players[i].ID, h.PlayerID)
		assert.Equal(t, players[i].Name, h.PlayerName)
		assert.Equal(t, hints[i], h.Hint)
	}
}

func TestSubmitHintOutOfTurn(t *testing.T) {
	_, room := newTestRoom(t, "Alice", "Bob", "Carol")
	_, gerr := startGame(room)
	require.Nil(t, gerr)

	_, gerr = submitHint(room, "p2", "sneaky")
	assert.Equal(t, ErrNotYourTurn, gerr)
	assert.Empty(t, room.Hints)
	assert.Equal(t, 0, room.CurrentTurnIndex)
}

func TestSubmitHintTrimsWhitespace(t *testing.T) {
	_, room := newTestRoom(t, "Alice", "Bob", "Carol")
	_, gerr := startGame(room)
	require.Nil(t, gerr)

	result, gerr := submitHint(room, "p0", "  fuzzy  ")
	require.Nil(t, gerr)
	assert.Equal(t, "fuzzy", result.Hint.Hint)
}

func TestSubmitVote(t *testing.T) {
	_, room := newTestRoom(t, "Alice", "Bob", "Carol")
	_, gerr := startGame(room)
	require.Nil(t, gerr)
	startVoting(room)

	t.Run("unknown target", func(t *testing.T) {
		_, gerr := submitVote(room, "p0", "stranger")
		assert.Equal(t, ErrInvalidTarget, gerr)
		assert.Empty(t, room.Votes)
	})

	t.Run("running tally", func(t *testing.T) {
		result, gerr := submitVote(room, "p0", "p1")
		require.Nil(t, gerr)
		assert.False(t, result.AllVotesIn)
		assert.Equal(t, 1, result.VoteCount)
		assert.Equal(t, 3, result.TotalPlayers)
	})

	t.Run("double vote is rejected without mutating", func(t *testing.T) {
		_, gerr := submitVote(room, "p0", "p2")
		assert.Equal(t, ErrAlreadyVoted, gerr)
		require.Len(t, room.Votes, 1)
		assert.Equal(t, "p1", room.Votes[0].VotedID)
	})

	t.Run("final vote signals all votes in", func(t *testing.T) {
		_, gerr := submitVote(room, "p1", "p0")
		require.Nil(t, gerr)

		result, gerr := submitVote(room, "p2", "p0")
		require.Nil(t, gerr)
		assert.True(t, result.AllVotesIn)
		assert.Equal(t, 3, result.VoteCount)
	})
}

func TestCalculateResultsImposterCaught(t *testing.T) {
	// Scenario C: both non-imposters vote for the imposter, who votes for
	// a non-imposter. The imposter is caught; correct voters gain 10, the
	// imposter gains nothing.
	_, room := newTestRoom(t, "Alice", "Bob", "Carol")
	_, gerr := startGame(room)
	require.Nil(t, gerr)

	imposters, others := splitRoles(room)
	imposter := imposters[0]

	startVoting(room)
	for _, p := range others {
		_, gerr := submitVote(room, p.ID, imposter.ID)
		require.Nil(t, gerr)
	}
	_, gerr = submitVote(room, imposter.ID, others[0].ID)
	require.Nil(t, gerr)

	result := calculateResults(room)

	assert.Equal(t, StateReveal, room.State)
	assert.True(t, result.ImposterCaught)
	assert.Equal(t, imposter.ID, result.VotedOut)
	assert.Equal(t, []string{imposter.Name}, result.ImposterNames)
	assert.Equal(t, room.CurrentWord, result.Word)
	assert.Equal(t, 2, result.VoteCounts[imposter.ID])

	assert.Zero(t, imposter.Score)
	for _, p := range others {
		assert.Equal(t, 10, p.Score)
	}
}

func TestCalculateResultsImposterEscapes(t *testing.T) {
	_, room := newTestRoom(t, "Alice", "Bob", "Carol")
	_, gerr := startGame(room)
	require.Nil(t, gerr)

	imposters, others := splitRoles(room)
	imposter := imposters[0]

	// Everyone piles onto a non-imposter.
	startVoting(room)
	for _, p := range room.ConnectedPlayers() {
		_, gerr := submitVote(room, p.ID, others[0].ID)
		require.Nil(t, gerr)
	}

	result := calculateResults(room)

	assert.False(t, result.ImposterCaught)
	assert.Equal(t, others[0].ID, result.VotedOut)
	assert.Equal(t, 15, imposter.Score)
	for _, p := range others {
		assert.Zero(t, p.Score)
	}
}

func TestVoteTieBreakFavorsFirstTarget(t *testing.T) {
	// On a tie, the first target to reach the maximum in vote-arrival
	// order stays the leader.
	_, room := newTestRoom(t, "Alice", "Bob", "Carol", "Dave")
	_, gerr := startGame(room)
	require.Nil(t, gerr)

	startVoting(room)

	players := room.ConnectedPlayers()
	votes := []struct{ voter, target int }{
		{0, 1}, {1, 0}, {2, 1}, {3, 0},
	}
	for _, v := range votes {
		_, gerr := submitVote(room, players[v.voter].ID, players[v.target].ID)
		require.Nil(t, gerr)
	}

	result := calculateResults(room)

	assert.Equal(t, 2, result.VoteCounts[players[0].ID])
	assert.Equal(t, 2, result.VoteCounts[players[1].ID])
	assert.Equal(t, players[1].ID, result.VotedOut)
}

func TestImposterGuess(t *testing.T) {
	// Scenario D: a correct guess is worth exactly 25 points, on top of
	// whatever the round already awarded.
	_, room := newTestRoom(t, "Alice", "Bob", "Carol")
	_, gerr := startGame(room)
	require.Nil(t, gerr)

	imposters, others := splitRoles(room)
	imposter := imposters[0]
	before := imposter.Score

	t.Run("non-imposters cannot guess", func(t *testing.T) {
		_, gerr := imposterGuess(room, others[0].ID, room.CurrentWord)
		assert.Equal(t, ErrNotAnImposter, gerr)
	})

	t.Run("wrong guess scores nothing", func(t *testing.T) {
		result, gerr := imposterGuess(room, imposter.ID, "definitely wrong")
		require.Nil(t, gerr)
		assert.False(t, result.Correct)
		assert.Equal(t, room.CurrentWord, result.ActualWord)
		assert.Equal(t, before, imposter.Score)
	})

	t.Run("correct guess ignores case and whitespace", func(t *testing.T) {
		result, gerr := imposterGuess(room, imposter.ID, "  "+room.CurrentWord+"  ")
		require.Nil(t, gerr)
		assert.True(t, result.Correct)
		assert.Equal(t, before+25, imposter.Score)
	})

	t.Run("state is unchanged by guessing", func(t *testing.T) {
		assert.Equal(t, StateHints, room.State)
	})
}

func TestNextRound(t *testing.T) {
	_, room := newTestRoom(t, "Alice", "Bob", "Carol")
	_, gerr := startGame(room)
	require.Nil(t, gerr)

	rs, end := nextRound(room)
	require.Nil(t, end)
	assert.Equal(t, 2, rs.Round)
	assert.Equal(t, 2, room.CurrentRound)
	assert.Equal(t, StateHints, room.State)
}

func TestNextRoundEndsGameAfterFinalRound(t *testing.T) {
	// Scenario F: advancing past the last round ends the game with scores
	// sorted descending, stable on ties.
	_, room := newTestRoom(t, "Alice", "Bob", "Carol")
	_, gerr := startGame(room)
	require.Nil(t, gerr)

	room.CurrentRound = room.TotalRounds
	room.Players[0].Score = 10
	room.Players[1].Score = 25
	room.Players[2].Score = 10

	rs, end := nextRound(room)
	require.Nil(t, rs)
	require.NotNil(t, end)

	assert.Equal(t, StateEnded, room.State)
	require.Len(t, end.FinalScores, 3)
	assert.Equal(t, "Bob", end.FinalScores[0].Name)
	assert.Equal(t, "Alice", end.FinalScores[1].Name)
	assert.Equal(t, "Carol", end.FinalScores[2].Name)
	assert.Equal(t, "Bob", end.Winner.Name)
	assert.Equal(t, 25, end.Winner.Score)
}

func TestResetGame(t *testing.T) {
	_, room := newTestRoom(t, "Alice", "Bob", "Carol")
	_, gerr := startGame(room)
	require.Nil(t, gerr)

	room.Players[0].Score = 50

	players := resetGame(room)

	assert.Equal(t, StateWaiting, room.State)
	assert.Equal(t, 0, room.CurrentRound)
	assert.Empty(t, room.CurrentWord)
	assert.Empty(t, room.ImposterIDs)
	assert.Len(t, players, 3)
	for _, p := range room.Players {
		assert.Zero(t, p.Score)
	}
}

func TestAddMessage(t *testing.T) {
	_, room := newTestRoom(t, "Alice", "Bob", "Carol")

	t.Run("non-members are dropped silently", func(t *testing.T) {
		assert.Nil(t, addMessage(room, "stranger", "hello"))
		assert.Empty(t, room.Messages)
	})

	t.Run("member messages are trimmed and attributed", func(t *testing.T) {
		msg := addMessage(room, "p1", "  i think it's alice  ")
		require.NotNil(t, msg)
		assert.Equal(t, "i think it's alice", msg.Message)
		assert.Equal(t, "Bob", msg.PlayerName)
		assert.NotZero(t, msg.Timestamp)
		assert.Len(t, room.Messages, 1)
	})
}

func TestSetCategory(t *testing.T) {
	_, room := newTestRoom(t, "Alice", "Bob", "Carol")

	require.Nil(t, setCategory(room, "food"))
	assert.Equal(t, "food", room.Category)

	assert.Equal(t, ErrUnknownCategory, setCategory(room, "geography"))
	assert.Equal(t, "food", room.Category)

	room.State = StateHints
	assert.Equal(t, ErrGameInProgress, setCategory(room, "movies"))
	assert.Equal(t, "food", room.Category)
}

func TestDisconnectedPlayersAreSkippedInRounds(t *testing.T) {
	reg, room := newTestRoom(t, "Alice", "Bob", "Carol", "Dave")

	_, destroyed := reg.RemovePlayer("p1")
	require.False(t, destroyed)

	_, gerr := startGame(room)
	require.Nil(t, gerr)

	// Bob keeps his seat but takes no turn and is no part of the vote
	// denominator.
	players := room.ConnectedPlayers()
	require.Len(t, players, 3)

	for i, p := range players {
		result, gerr := submitHint(room, p.ID, "hint")
		require.Nil(t, gerr)
		if i == len(players)-1 {
			assert.True(t, result.AllHintsComplete)
		}
	}
	assert.Equal(t, StateDiscussion, room.State)

	startVoting(room)
	_, gerr = submitVote(room, "p0", "p1")
	assert.Equal(t, ErrInvalidTarget, gerr)
}
