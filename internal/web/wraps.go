package web

import (
	"errors"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/desertthunder/wrapped/internal/formatter"
	"github.com/desertthunder/wrapped/internal/models"
	"github.com/desertthunder/wrapped/internal/shared"
	"golang.org/x/oauth2"
)

// WrapsView is the data of the wraps page.
type WrapsView struct {
	Wraps      []*models.Wrap
	Timeframes []string
	Formats    []formatter.Format
}

func (a *App) listWraps(w http.ResponseWriter, r *http.Request, p *models.Profile) {
	wraps, err := a.wraps.List(r.Context(), map[string]any{"profile_id": p.ID()})
	if err != nil {
		a.logger.Error("failed to list wraps", "profile", p.ID(), "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	view := WrapsView{Wraps: wraps, Timeframes: models.Timeframes, Formats: formatter.Formats}
	a.render(w, http.StatusOK, "wraps", a.page(w, r, "Your Wraps", view))
}

// createWrap pulls the user's listening data for the submitted timeframe and stores a new wrap.
func (a *App) createWrap(w http.ResponseWriter, r *http.Request, p *models.Profile) {
	timeframe := strings.TrimSpace(r.FormValue("timeframe"))
	if !slices.Contains(models.Timeframes, timeframe) {
		a.redirectWithFlash(w, r, flashError, "Invalid request.", "/wraps")
		return
	}

	tok := p.Token()
	if !tok.Valid() && tok.RefreshToken == "" {
		a.logger.Warn("stored token expired without refresh token", "profile", p.ID())
		a.redirectWithFlash(w, r, flashError, createMessage(shared.ErrNoRefreshToken), "/wraps")
		return
	}

	ctx := r.Context()
	api := a.spotify.Client(ctx, tok, func(tok *oauth2.Token) {
		if err := a.profiles.UpdateTokens(ctx, p.ID(), tok); err != nil {
			a.logger.Error("failed to store refreshed token", "profile", p.ID(), "error", err)
		}
	})

	wrap, err := a.engine.Create(ctx, nil, api, p, timeframe)
	if err != nil {
		a.logger.Error("failed to create wrap", "profile", p.ID(), "timeframe", timeframe, "error", err)
		a.redirectWithFlash(w, r, flashError, createMessage(err), "/wraps")
		return
	}

	http.Redirect(w, r, "/wraps/"+wrap.ID()+"/slides/0", http.StatusFound)
}

func createMessage(err error) string {
	switch {
	case errors.Is(err, shared.ErrRefreshFailed), errors.Is(err, shared.ErrNoRefreshToken):
		return "Failed to refresh Spotify token."
	case errors.Is(err, shared.ErrTokenExpired):
		return "Your Spotify session has expired. Please log in again."
	case errors.Is(err, shared.ErrInvalidInput):
		return "Invalid request."
	default:
		return "Failed to fetch data from Spotify."
	}
}

func (a *App) showWrap(w http.ResponseWriter, r *http.Request, _ *models.Profile) {
	http.Redirect(w, r, "/wraps/"+r.PathValue("id")+"/slides/0", http.StatusFound)
}

// SlideView is the data of a slide page.
type SlideView struct {
	Wrap  *models.Wrap
	Slide models.Slide
	Total int
}

func (a *App) showSlide(w http.ResponseWriter, r *http.Request, p *models.Profile) {
	wrap, ok := a.ownedWrap(w, r, p)
	if !ok {
		return
	}

	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	s := a.session(r)
	lang := languageOf(s)
	if l, ok := models.ParseLanguage(r.URL.Query().Get("lang")); ok {
		lang = l
	}

	pres := models.NewPresentation(wrap, lang)
	slide, err := pres.Slide(page)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	view := SlideView{Wrap: wrap, Slide: slide, Total: pres.Len()}
	pg := a.page(w, r, slide.Title, view)
	pg.Lang = lang
	a.render(w, http.StatusOK, slide.Template(), pg)
}

// ownedWrap loads the {id} wrap of p. It flashes and redirects when there is none.
func (a *App) ownedWrap(w http.ResponseWriter, r *http.Request, p *models.Profile) (*models.Wrap, bool) {
	wrap, err := a.wraps.GetForProfile(r.Context(), r.PathValue("id"), p.ID())
	switch {
	case errors.Is(err, shared.ErrWrapNotFound):
		a.redirectWithFlash(w, r, flashError, "Wrap not found.", "/wraps")
		return nil, false
	case err != nil:
		a.logger.Error("failed to load wrap", "wrap", r.PathValue("id"), "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}
	return wrap, true
}

// exportWrap downloads a wrap in the ?format= format, JSON by default.
func (a *App) exportWrap(w http.ResponseWriter, r *http.Request, p *models.Profile) {
	format, err := formatter.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	wrap, ok := a.ownedWrap(w, r, p)
	if !ok {
		return
	}

	data, err := formatter.Export(wrap, format)
	if err != nil {
		a.logger.Error("export failed", "wrap", wrap.ID(), "format", format, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": formatter.Filename(wrap, format)}))
	_, _ = w.Write(data)
}

// deleteWrap answers in JSON since it is called from the wraps page script.
func (a *App) deleteWrap(w http.ResponseWriter, r *http.Request) {
	p, err := a.currentProfile(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required."})
		return
	}

	err = a.wraps.DeleteForProfile(r.Context(), r.PathValue("id"), p.ID())
	switch {
	case errors.Is(err, shared.ErrWrapNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Wrap not found."})
	case err != nil:
		a.logger.Error("failed to delete wrap", "wrap", r.PathValue("id"), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete wrap."})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Wrap deleted successfully."})
	}
}
