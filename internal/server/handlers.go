package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ivlev/story2video/internal/export"
	"github.com/ivlev/story2video/internal/logger"
	"github.com/ivlev/story2video/internal/pipeline"
	"github.com/ivlev/story2video/internal/playback"
	"github.com/ivlev/story2video/internal/story"
)

type sessionView struct {
	ID       string                  `json:"id"`
	State    string                  `json:"state"`
	Error    string                  `json:"error,omitempty"`
	Progress pipeline.Progress       `json:"progress"`
	Request  story.GenerationRequest `json:"request"`
	Script   []story.Scene           `json:"script,omitempty"`
	Playback *playback.State         `json:"playback,omitempty"`
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, story.Options())
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	view := sessionView{
		ID:       s.session.ID(),
		State:    s.session.State().String(),
		Progress: s.session.Progress(),
		Request:  s.session.Request(),
	}
	if err := s.session.Err(); err != nil {
		var gerr *pipeline.GenerationError
		if errors.As(err, &gerr) {
			view.Error = gerr.Message
		} else {
			view.Error = err.Error()
		}
	}
	if assets := s.session.Assets(); assets != nil {
		// images are served separately; the list stays light
		view.Script = assets.Script
		for i := range view.Script {
			view.Script[i].ImageURL = fmt.Sprintf("/api/scenes/%d/image", view.Script[i].Number)
		}
	}
	if engine := s.session.Playback(); engine != nil {
		st := engine.State()
		view.Playback = &st
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req := story.DefaultRequest()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	if _, err := s.session.StartGeneration(s.runCtx, req); err != nil {
		writeError(w, commandStatus(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"state": s.session.State().String()})
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session.StartContinuation(s.runCtx); err != nil {
		writeError(w, commandStatus(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"state": s.session.State().String()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Reset(); err != nil {
		writeError(w, commandStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": s.session.State().String()})
}

func (s *Server) handleEditStart(w http.ResponseWriter, r *http.Request) {
	scenes, err := s.session.EditScenes()
	if err != nil {
		writeError(w, commandStatus(err), err)
		return
	}
	// the editor only touches text
	for i := range scenes {
		scenes[i].ImageURL = ""
	}
	writeJSON(w, http.StatusOK, scenes)
}

func (s *Server) handleEditSave(w http.ResponseWriter, r *http.Request) {
	var scenes []story.Scene
	if err := json.NewDecoder(r.Body).Decode(&scenes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid scenes: %w", err))
		return
	}
	if err := s.session.SaveEdits(scenes); err != nil {
		writeError(w, commandStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": s.session.State().String()})
}

func (s *Server) handleEditCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.session.CancelEdits(); err != nil {
		writeError(w, commandStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": s.session.State().String()})
}

type playbackView struct {
	playback.State
	Scene    int    `json:"scene"`
	Subtitle string `json:"subtitle,omitempty"`
}

func viewOf(engine *playback.Engine) playbackView {
	scene, sub := engine.Current()
	return playbackView{State: engine.State(), Scene: scene.Number, Subtitle: sub}
}

func (s *Server) handlePlaybackState(w http.ResponseWriter, r *http.Request) {
	engine := s.session.Playback()
	if engine == nil {
		writeError(w, http.StatusConflict, fmt.Errorf("nothing to play while %s", s.session.State()))
		return
	}
	writeJSON(w, http.StatusOK, viewOf(engine))
}

func (s *Server) handlePlaybackCommand(w http.ResponseWriter, r *http.Request) {
	engine := s.session.Playback()
	if engine == nil {
		writeError(w, http.StatusConflict, fmt.Errorf("nothing to play while %s", s.session.State()))
		return
	}
	switch cmd := mux.Vars(r)["command"]; cmd {
	case "play":
		engine.Play()
	case "pause":
		engine.Pause()
	case "replay":
		engine.Replay()
	case "toggle":
		engine.Toggle()
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown playback command %q", cmd))
		return
	}
	writeJSON(w, http.StatusOK, viewOf(engine))
}

func (s *Server) handleSceneImage(w http.ResponseWriter, r *http.Request) {
	number, _ := strconv.Atoi(mux.Vars(r)["number"])
	assets := s.session.Assets()
	if assets == nil {
		http.Error(w, "no video", http.StatusNotFound)
		return
	}
	for _, scene := range assets.Script {
		if scene.Number != number {
			continue
		}
		mime, data, err := story.ParseDataURL(scene.ImageURL)
		if err != nil {
			http.Error(w, "image unavailable", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", mime)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
		return
	}
	http.Error(w, "scene not found", http.StatusNotFound)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	assets := s.session.Assets()
	if assets == nil {
		writeError(w, http.StatusConflict, fmt.Errorf("nothing to export while %s", s.session.State()))
		return
	}
	opts := export.Options{}
	if engine := s.session.Playback(); engine != nil {
		scene, _ := engine.Current()
		opts.Scene = scene.Number
	}
	pkg, err := export.Build("", s.session.Request(), assets, opts)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	location, err := s.sink.Write(r.Context(), pkg)
	if err != nil {
		logger.Error("export failed", logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"location": location, "files": len(pkg.Files)})
}
