/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type roomLookupResponse struct {
	Code  string    `json:"code"`
	State RoomState `json:"state"`
}

type categoriesResponse struct {
	Categories []string `json:"categories"`
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}

// serveRoomLookup resolves a share token to {code, state} for the
// deep-link join flow. It runs on HTTP goroutines, so it only ever sees
// the registry's synchronized snapshot, never the live Room.
func serveRoomLookup(cfg *Config, registry *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code, state, ok := registry.ShareLookup(ps.ByName("shareid"))
		if !ok {
			writeJSON(cfg, w, http.StatusNotFound, ErrorMessage{
				Type:    "error",
				Code:    ErrRoomNotFound.Code,
				Message: ErrRoomNotFound.Message,
			})
			return
		}

		writeJSON(cfg, w, http.StatusOK, roomLookupResponse{
			Code:  code,
			State: state,
		})

		logf(cfg, "SERVE: Room lookup for %s to %s", code, realIP(r))
	}
}

func serveCategories(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(cfg, w, http.StatusOK, categoriesResponse{Categories: getCategories()})
	}
}
