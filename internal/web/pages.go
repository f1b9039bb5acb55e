package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/wrapped/internal/models"
	"github.com/desertthunder/wrapped/internal/shared"
	"github.com/google/uuid"
)

const (
	maxUploadSize  = 5 << 20
	pictureURLTTL  = 15 * time.Minute
	contactSubject = "[wrapped] "
)

func (a *App) index(w http.ResponseWriter, r *http.Request) {
	a.render(w, http.StatusOK, "index", a.page(w, r, "Wrapped", nil))
}

// ContactForm is the data of the contact page.
type ContactForm struct {
	Subject string
	Message string
	Result  string
	Sent    bool
}

// contact renders the form and, on POST, the outcome of sending it.
func (a *App) contact(w http.ResponseWriter, r *http.Request) {
	form := ContactForm{}
	if r.Method == http.MethodPost {
		form.Subject = strings.TrimSpace(r.FormValue("subject"))
		form.Message = strings.TrimSpace(r.FormValue("message"))
		form.Sent, form.Result = a.sendContact(r, form)
		if form.Sent {
			form.Subject, form.Message = "", ""
		}
	}
	a.render(w, http.StatusOK, "contact", a.page(w, r, "Contact", form))
}

func (a *App) sendContact(r *http.Request, form ContactForm) (bool, string) {
	if form.Subject == "" || form.Message == "" {
		return false, "All fields are required"
	}
	if a.mailer == nil {
		return false, fmt.Sprintf("Error sending email: %v", shared.ErrServiceDisabled)
	}

	body := form.Message
	if p, err := a.currentProfile(r); err == nil {
		body = fmt.Sprintf("%s\n\nFrom: %s (%s)", body, p.SpotifyUsername(), p.SpotifyUserID())
	}

	if err := a.mailer.Send(r.Context(), contactSubject+form.Subject, body); err != nil {
		a.logger.Error("contact mail failed", "error", err)
		return false, fmt.Sprintf("Error sending email: %v", err)
	}
	return true, "Email sent successfully"
}

func (a *App) settings(w http.ResponseWriter, r *http.Request, _ *models.Profile) {
	a.render(w, http.StatusOK, "settings", a.page(w, r, "Settings", nil))
}

func (a *App) setTheme(w http.ResponseWriter, r *http.Request) {
	theme := r.PathValue("theme")
	if !slices.Contains(Themes, theme) {
		a.redirectWithFlash(w, r, flashError, "Invalid theme.", "/")
		return
	}

	s := a.session(r)
	s.Values[keyTheme] = theme
	a.saveSession(w, r, s)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *App) setLanguage(w http.ResponseWriter, r *http.Request) {
	target := localReferer(r)

	lang, ok := models.ParseLanguage(r.PathValue("lang"))
	if !ok {
		a.redirectWithFlash(w, r, flashError, "Unsupported language.", target)
		return
	}

	s := a.session(r)
	s.Values[keyLang] = string(lang)
	a.saveSession(w, r, s)
	http.Redirect(w, r, target, http.StatusFound)
}

// localReferer returns the path of the request's Referer when it points back at this host, "/" otherwise.
func localReferer(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || !strings.HasPrefix(ref.Path, "/") {
		return "/"
	}
	if ref.Host != "" && ref.Host != r.Host {
		return "/"
	}
	if ref.Scheme != "" && ref.Scheme != "http" && ref.Scheme != "https" {
		return "/"
	}
	if strings.HasPrefix(ref.Path, "//") || strings.HasPrefix(ref.Path, "/\\") {
		return "/"
	}

	local := url.URL{Path: ref.Path, RawQuery: ref.RawQuery}
	return local.String()
}

// deleteAccount removes the profile and its wraps, then logs the user out.
func (a *App) deleteAccount(w http.ResponseWriter, r *http.Request) {
	const missing = "No account data found to delete."

	id, err := a.profileID(r)
	if err != nil {
		a.redirectWithFlash(w, r, flashError, missing, "/settings")
		return
	}

	p, err := a.profiles.Get(r.Context(), id)
	if err == nil {
		err = a.profiles.Delete(r.Context(), id)
	}
	switch {
	case errors.Is(err, shared.ErrProfileNotFound):
		a.redirectWithFlash(w, r, flashError, missing, "/settings")
		return
	case err != nil:
		a.logger.Error("failed to delete account", "profile", id, "error", err)
		a.redirectWithFlash(w, r, flashError, "Failed to delete your account.", "/settings")
		return
	}

	if key := p.ProfilePicture(); key != "" && a.objects != nil {
		if err := a.objects.Remove(r.Context(), key); err != nil {
			a.logger.Warn("failed to remove profile picture", "key", key, "error", err)
		}
	}

	a.logger.Info("account deleted", "profile", id)
	a.clearAuthCookie(w)

	s := a.session(r)
	for k := range s.Values {
		delete(s.Values, k)
	}
	s.AddFlash("Your account data has been deleted, and you have been logged out.", flashSuccess)
	a.saveSession(w, r, s)
	http.Redirect(w, r, "/", http.StatusFound)
}

// ProfileView is the data of the profile page.
type ProfileView struct {
	HasPicture bool
	CanUpload  bool
}

func (a *App) profile(w http.ResponseWriter, r *http.Request, p *models.Profile) {
	view := ProfileView{HasPicture: p.ProfilePicture() != "" && a.objects != nil, CanUpload: a.objects != nil}
	a.render(w, http.StatusOK, "profile", a.page(w, r, "Profile", view))
}

func (a *App) updateProfile(w http.ResponseWriter, r *http.Request, p *models.Profile) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(maxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		a.redirectWithFlash(w, r, flashError, "Invalid request.", "/profile")
		return
	}

	oldPicture := p.ProfilePicture()
	p.SetDetails(r.FormValue("bio"), r.FormValue("favorite_genres"))
	if err := p.Validate(); err != nil {
		a.redirectWithFlash(w, r, flashError, capitalize(err.Error())+".", "/profile")
		return
	}

	newPicture, err := a.uploadPicture(r, p)
	if err != nil {
		a.logger.Error("picture upload failed", "profile", p.ID(), "error", err)
		a.redirectWithFlash(w, r, flashError, uploadMessage(err), "/profile")
		return
	}

	if err := a.profiles.Update(r.Context(), p); err != nil {
		a.logger.Error("failed to update profile", "profile", p.ID(), "error", err)
		a.redirectWithFlash(w, r, flashError, "Failed to update your profile.", "/profile")
		return
	}

	if newPicture && oldPicture != "" {
		if err := a.objects.Remove(r.Context(), oldPicture); err != nil {
			a.logger.Warn("failed to remove old profile picture", "key", oldPicture, "error", err)
		}
	}
	a.redirectWithFlash(w, r, flashSuccess, "Profile updated.", "/profile")
}

var errNotImage = errors.New("uploaded file is not an image")

// uploadPicture stores the "picture" form file, when present, and points p at it.
func (a *App) uploadPicture(r *http.Request, p *models.Profile) (bool, error) {
	if r.MultipartForm == nil {
		return false, nil
	}
	file, header, err := r.FormFile("picture")
	if errors.Is(err, http.ErrMissingFile) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer file.Close()

	if a.objects == nil {
		return false, shared.ErrServiceDisabled
	}

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return false, errNotImage
	}

	key := fmt.Sprintf("profiles/%s/%s%s", p.ID(), uuid.NewString(), strings.ToLower(path.Ext(header.Filename)))
	if err := a.objects.Put(r.Context(), key, file, header.Size, contentType); err != nil {
		return false, err
	}
	p.SetProfilePicture(key)
	return true, nil
}

func uploadMessage(err error) string {
	switch {
	case errors.Is(err, shared.ErrServiceDisabled):
		return "Picture uploads are not available."
	case errors.Is(err, errNotImage):
		return "Profile pictures must be images."
	default:
		return "Failed to upload your picture."
	}
}

// profilePicture redirects to a short-lived URL of the stored picture.
func (a *App) profilePicture(w http.ResponseWriter, r *http.Request, p *models.Profile) {
	if p.ProfilePicture() == "" || a.objects == nil {
		http.NotFound(w, r)
		return
	}

	u, err := a.objects.URL(r.Context(), p.ProfilePicture(), pictureURLTTL)
	if err != nil {
		a.logger.Error("failed to presign picture", "profile", p.ID(), "error", err)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	http.Redirect(w, r, u.String(), http.StatusFound)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
