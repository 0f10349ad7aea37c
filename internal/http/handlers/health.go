package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready checks the database with a short deadline.
func (a *App) Ready(w http.ResponseWriter, r *http.Request) {
	if a.DB == nil {
		a.json(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.DB.Ping(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("readiness check failed")
		a.json(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
