package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"drop-catch/internal/game"
	"drop-catch/internal/prefs"
	"drop-catch/internal/render"
)

// Frame size bounds for /frame.png
const (
	maxFrameWidth  = 1920
	maxFrameHeight = 1080
)

// ActionResponse is returned by every game mutation
type ActionResponse struct {
	Success  bool          `json:"success"`
	Snapshot game.Snapshot `json:"snapshot"`
}

// MuteResponse is the mute preference document
type MuteResponse struct {
	PlayerID string `json:"playerId"`
	Muted    bool   `json:"muted"`
}

// SoundURL returns the path a client fetches a cue from
func SoundURL(cue game.SoundCue) string {
	return "/api/sounds/" + cue.String() + ".wav"
}

func (h *routerHandlers) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	store := h.games.Profiles()
	writeJSON(w, map[string]interface{}{
		"default":  store.DefaultKey(),
		"profiles": store.Profiles(),
	})
}

func (h *routerHandlers) handleProfilePreview(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	store := h.games.Profiles()
	if !store.Has(key) {
		writeError(w, "Unknown difficulty", http.StatusNotFound)
		return
	}
	writeJSON(w, store.Preview(key))
}

func (h *routerHandlers) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var opts game.GameOptions
	if !h.decodeBody(w, r, &opts, true) {
		return
	}
	if opts.UserAgent == "" {
		opts.UserAgent = r.UserAgent()
	}
	if opts.PlayerID != "" {
		id, err := prefs.ValidatePlayerID(opts.PlayerID)
		if err != nil {
			writeError(w, "Invalid playerId", http.StatusBadRequest)
			return
		}
		opts.PlayerID = id
	}

	g, err := h.games.Create(opts)
	if err != nil {
		writeGameError(w, err)
		return
	}

	w.Header().Set("Location", "/api/games/"+g.ID)
	writeJSONStatus(w, http.StatusCreated, map[string]interface{}{
		"id":       g.ID,
		"playerId": g.PlayerID,
		"snapshot": g.Engine.Snapshot(),
	})
}

func (h *routerHandlers) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.games.List())
}

func (h *routerHandlers) handleGetGame(w http.ResponseWriter, r *http.Request) {
	g, ok := h.game(w, r)
	if !ok {
		return
	}
	writeJSON(w, g.Engine.Snapshot())
}

func (h *routerHandlers) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	if err := h.games.Remove(chi.URLParam(r, "id")); err != nil {
		writeGameError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *routerHandlers) handleStartGame(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(e *game.Engine) bool { return e.StartGame() })
}

func (h *routerHandlers) handleResetGame(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(e *game.Engine) bool { return e.ResetGame() })
}

func (h *routerHandlers) handleSelectDifficulty(w http.ResponseWriter, r *http.Request) {
	g, ok := h.game(w, r)
	if !ok {
		return
	}
	var req struct {
		Key string `json:"key"`
	}
	if !h.decodeBody(w, r, &req, false) {
		return
	}
	// unknown keys resolve to the default profile, named in the preview
	writeJSON(w, g.Engine.SelectDifficulty(req.Key))
}

func (h *routerHandlers) handleCatch(w http.ResponseWriter, r *http.Request) {
	id, ok := dropID(w, r)
	if !ok {
		return
	}
	h.act(w, r, func(e *game.Engine) bool { return e.Catch(id) })
}

func (h *routerHandlers) handleExpire(w http.ResponseWriter, r *http.Request) {
	id, ok := dropID(w, r)
	if !ok {
		return
	}
	h.act(w, r, func(e *game.Engine) bool { return e.Expire(id) })
}

func (h *routerHandlers) handleFrame(w http.ResponseWriter, r *http.Request) {
	g, ok := h.game(w, r)
	if !ok {
		return
	}

	opts := h.frame
	if opts.Width <= 0 || opts.Height <= 0 {
		opts = render.DefaultOptions()
	}
	var err error
	if opts.Width, err = sizeParam(r, "w", opts.Width, maxFrameWidth); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if opts.Height, err = sizeParam(r, "h", opts.Height, maxFrameHeight); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	if h.renderer == nil {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if err := render.WritePNG(w, g.Engine.Snapshot(), opts); err != nil {
			logrus.WithError(err).WithField("game", g.ID).Warn("⚠️ Frame render failed")
			return
		}
		RecordRender(time.Since(start))
		return
	}

	png, err := h.renderer.Render(r.Context(), g.Engine.Snapshot(), opts)
	switch {
	case errors.Is(err, render.ErrPoolBusy), errors.Is(err, render.ErrPoolStopped):
		RecordConnectionRejected("render_busy")
		w.Header().Set("Retry-After", "1")
		writeError(w, "Renderer busy", http.StatusServiceUnavailable)
		return
	case err != nil:
		logrus.WithError(err).WithField("game", g.ID).Warn("⚠️ Frame render failed")
		writeError(w, "Frame render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
	RecordRender(time.Since(start))
}

func (h *routerHandlers) handleWS(w http.ResponseWriter, r *http.Request) {
	g, ok := h.game(w, r)
	if !ok {
		return
	}
	h.hub.HandleWebSocket(w, r, g)
}

func (h *routerHandlers) handleSound(w http.ResponseWriter, r *http.Request) {
	if h.sounds == nil {
		writeError(w, "Sound is disabled", http.StatusNotFound)
		return
	}
	cue, err := game.ParseSoundCue(chi.URLParam(r, "cue"))
	if err != nil {
		writeError(w, "Unknown sound", http.StatusNotFound)
		return
	}
	data, err := h.sounds.WAV(cue)
	if err != nil {
		writeError(w, "Unknown sound", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (h *routerHandlers) handleGetMute(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "playerId")
	flag, err := h.flags.Flag(r.Context(), player)
	if err != nil {
		writePrefsError(w, err)
		return
	}
	writeJSON(w, MuteResponse{PlayerID: player, Muted: flag.Muted()})
}

func (h *routerHandlers) handleSetMute(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "playerId")
	var req struct {
		Muted *bool `json:"muted"`
	}
	if !h.decodeBody(w, r, &req, false) {
		return
	}
	if req.Muted == nil {
		writeError(w, "muted is required", http.StatusBadRequest)
		return
	}
	if err := h.flags.SetMuted(r.Context(), player, *req.Muted); err != nil {
		writePrefsError(w, err)
		return
	}
	writeJSON(w, MuteResponse{PlayerID: player, Muted: *req.Muted})
}

// act runs fn on the game's engine and replies with the result and snapshot
func (h *routerHandlers) act(w http.ResponseWriter, r *http.Request, fn func(e *game.Engine) bool) {
	g, ok := h.game(w, r)
	if !ok {
		return
	}
	success := fn(g.Engine)
	writeJSON(w, ActionResponse{Success: success, Snapshot: g.Engine.Snapshot()})
}

func (h *routerHandlers) game(w http.ResponseWriter, r *http.Request) (*game.Game, bool) {
	g, err := h.games.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeGameError(w, err)
		return nil, false
	}
	return g, true
}

// decodeBody reads a bounded JSON body into v. An empty body is accepted only
// when optional is set.
func (h *routerHandlers) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, io.EOF) && optional:
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return false
	}
	writeError(w, "Invalid request", http.StatusBadRequest)
	return false
}

func dropID(w http.ResponseWriter, r *http.Request) (game.DropID, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "dropId"), 10, 64)
	if err != nil {
		writeError(w, "Invalid drop id", http.StatusBadRequest)
		return 0, false
	}
	return game.DropID(id), true
}

func sizeParam(r *http.Request, name string, def, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, errors.New("invalid " + name + ": must be 1-" + strconv.Itoa(max))
	}
	return n, nil
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSONStatus(w, code, map[string]string{"error": message})
}

func writeGameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrGameNotFound):
		writeError(w, "Game not found", http.StatusNotFound)
	case errors.Is(err, game.ErrTooManyGames):
		writeError(w, "Game limit reached", http.StatusServiceUnavailable)
	default:
		logrus.WithError(err).Error("❌ Game request failed")
		writeError(w, "Internal error", http.StatusInternalServerError)
	}
}

func writePrefsError(w http.ResponseWriter, err error) {
	if errors.Is(err, prefs.ErrInvalidPlayer) {
		writeError(w, "Invalid player id", http.StatusBadRequest)
		return
	}
	logrus.WithError(err).Warn("⚠️ Preference store unavailable")
	writeError(w, "Preference store unavailable", http.StatusServiceUnavailable)
}
