/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// GameError is a recoverable, value-returned failure from the registry or
// engine. It is surfaced to the originating caller only, never broadcast,
// and never mutates room state.
type GameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *GameError) Error() string {
	return e.Message
}

var (
	ErrRoomNotFound     = &GameError{Code: "room_not_found", Message: "Room not found"}
	ErrGameInProgress   = &GameError{Code: "game_in_progress", Message: "Game already in progress"}
	ErrNotEnoughPlayers = &GameError{Code: "not_enough_players", Message: "Need at least 3 players to start"}
	ErrNotAuthorized    = &GameError{Code: "not_authorized", Message: "Not authorized"}
	ErrNotYourTurn      = &GameError{Code: "not_your_turn", Message: "Not your turn"}
	ErrAlreadyVoted     = &GameError{Code: "already_voted", Message: "Already voted"}
	ErrInvalidTarget    = &GameError{Code: "invalid_target", Message: "Invalid player"}
	ErrNotAnImposter    = &GameError{Code: "not_an_imposter", Message: "Only imposters can guess"}
	ErrUnknownCategory  = &GameError{Code: "unknown_category", Message: "Unknown category"}
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon())
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
