package web

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"html"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/wrapped/internal/models"
	"github.com/desertthunder/wrapped/internal/services"
	"github.com/desertthunder/wrapped/internal/shared"
	tu "github.com/desertthunder/wrapped/internal/testing"
	"golang.org/x/oauth2"
)

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
}

func (m *memObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return nil
}

func (m *memObjects) URL(ctx context.Context, key string, expiry time.Duration) (*url.URL, error) {
	return url.Parse("https://objects.test/" + key)
}

func (m *memObjects) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.removed = append(m.removed, key)
	return nil
}

type testEnv struct {
	app     *App
	spotify *tu.FakeSpotify
	mailer  *tu.StubMailer
	objects *memObjects
	server  *httptest.Server
	client  *http.Client

	csrfToken string
}

var csrfMeta = regexp.MustCompile(`<meta name="csrf-token" content="([^"]+)">`)

// token returns the client's form token, loading a page for it once.
func (e *testEnv) token(t *testing.T) string {
	t.Helper()

	if e.csrfToken == "" {
		_, body := e.get(t, "/contact")
		m := csrfMeta.FindStringSubmatch(body)
		if m == nil {
			t.Fatalf("no csrf token in page:\n%s", body)
		}
		e.csrfToken = html.UnescapeString(m[1])
	}
	return e.csrfToken
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(shared.DatabaseConfig{Driver: shared.DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(context.Background(), db, shared.DriverSQLite, nil); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fake := tu.NewFakeSpotify(t)
	fake.Tracks = []models.Track{
		{ID: "t1", Name: "Song A", Artists: []string{"Artist A"}, ArtistIDs: []string{"a1"}},
		{ID: "t2", Name: "Song B", Artists: []string{"Artist B"}, ArtistIDs: []string{"a2"}},
	}
	fake.Artists = []models.Artist{
		{ID: "a1", Name: "Artist A", Genres: []string{"indie", "rock"}},
		{ID: "a2", Name: "Artist B", Genres: []string{"rock"}},
	}

	cfg := shared.DefaultConfig()
	cfg.Credentials.Spotify = fake.Config()
	cfg.Database.Driver = shared.DriverSQLite
	cfg.Session = shared.SessionConfig{
		Name:      "wrapped_test",
		Secret:    "0123456789abcdef0123456789abcdef",
		JWTSecret: "jwt-test-secret",
		TokenTTL:  time.Hour,
	}
	cfg.Telemetry.MetricsRoute = ""

	spotify, err := services.NewSpotifyService(cfg.Credentials.Spotify)
	if err != nil {
		t.Fatalf("NewSpotifyService() error = %v", err)
	}

	env := &testEnv{spotify: fake, mailer: &tu.StubMailer{}, objects: &memObjects{}}
	env.app, err = NewApp(AppOpts{
		Config:    cfg,
		DB:        setupTestDB(t),
		Spotify:   spotify,
		Describer: &tu.StubDescriber{},
		Mailer:    env.mailer,
		Objects:   env.objects,
	})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}

	env.server = httptest.NewServer(env.app.Handler())
	t.Cleanup(env.server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New() error = %v", err)
	}
	env.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(method, e.server.URL+path, body)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if method != http.MethodGet && method != http.MethodHead {
		req.Header.Set(csrfHeader, e.token(t))
	}
	return e.send(t, req)
}

// send performs req as is, without adding a form token.
func (e *testEnv) send(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()

	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp, string(data)
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	return e.do(t, http.MethodGet, path, nil, "")
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	return e.do(t, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

// startLogin follows /login and returns the state sent to the authorize endpoint.
func (e *testEnv) startLogin(t *testing.T) string {
	t.Helper()

	resp, _ := e.get(t, "/login")
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("GET /login status = %d, want 302", resp.StatusCode)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("bad Location: %v", err)
	}
	if !strings.HasPrefix(loc.String(), e.spotify.Server.URL+"/authorize") {
		t.Fatalf("Location = %s, want the authorize endpoint", loc)
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("authorize URL has no state")
	}
	return state
}

func (e *testEnv) login(t *testing.T) *models.Profile {
	t.Helper()

	state := e.startLogin(t)
	resp, _ := e.get(t, "/spotify/callback?code="+tu.FakeCode+"&state="+state)
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/" {
		t.Fatalf("callback = %d %s, want 302 /", resp.StatusCode, resp.Header.Get("Location"))
	}

	p, err := e.app.profiles.GetBySpotifyID(context.Background(), e.spotify.User.ID)
	if err != nil {
		t.Fatalf("profile not stored: %v", err)
	}
	return p
}

// expectRedirect asserts a 302 to target and returns the body of target.
func (e *testEnv) expectRedirect(t *testing.T, resp *http.Response, target string) string {
	t.Helper()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != target {
		t.Fatalf("Location = %q, want %q", loc, target)
	}
	_, body := e.get(t, target)
	return body
}

func (e *testEnv) createWrap(t *testing.T, timeframe string) string {
	t.Helper()

	resp, _ := e.postForm(t, "/wraps", url.Values{"timeframe": {timeframe}})
	loc := resp.Header.Get("Location")
	if resp.StatusCode != http.StatusFound || !strings.HasSuffix(loc, "/slides/0") {
		t.Fatalf("POST /wraps = %d %s, want redirect to slide 0", resp.StatusCode, loc)
	}
	return strings.TrimSuffix(strings.TrimPrefix(loc, "/wraps/"), "/slides/0")
}

func TestSpotifyCallback(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.login(t)

		if p.SpotifyUsername() != "Test Listener" {
			t.Errorf("username = %q", p.SpotifyUsername())
		}
		if p.Token().AccessToken != tu.FakeAccessToken || p.Token().RefreshToken != tu.FakeRefreshToken {
			t.Errorf("tokens not stored: %+v", p.Token())
		}

		_, body := env.get(t, "/")
		if !strings.Contains(body, "Logged in as Test Listener") {
			t.Errorf("index missing login flash:\n%s", body)
		}
		_, body = env.get(t, "/")
		if strings.Contains(body, "Logged in as") {
			t.Error("flash shown twice")
		}
	})

	t.Run("Second Login Reuses Profile", func(t *testing.T) {
		env := newTestEnv(t)
		first := env.login(t)
		second := env.login(t)
		if first.ID() != second.ID() {
			t.Errorf("profile ids differ: %s != %s", first.ID(), second.ID())
		}
	})

	failures := []struct {
		name    string
		setup   func(*tu.FakeSpotify)
		query   func(state string) string
		message string
	}{
		{
			name:    "Error Param",
			query:   func(state string) string { return "error=access_denied&state=" + state },
			message: "Spotify authentication failed.",
		},
		{
			name:    "State Mismatch",
			query:   func(string) string { return "code=" + tu.FakeCode + "&state=forged" },
			message: "State mismatch. Please try again.",
		},
		{
			name:    "Missing Code",
			query:   func(state string) string { return "state=" + state },
			message: "Authorization code not found.",
		},
		{
			name:    "Exchange Failure",
			setup:   func(f *tu.FakeSpotify) { f.FailExchange = true },
			query:   func(state string) string { return "code=" + tu.FakeCode + "&state=" + state },
			message: "Failed to obtain access token.",
		},
		{
			name:    "Me Failure",
			setup:   func(f *tu.FakeSpotify) { f.FailMe = true },
			query:   func(state string) string { return "code=" + tu.FakeCode + "&state=" + state },
			message: "Failed to fetch Spotify user information.",
		},
	}

	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tc.setup != nil {
				tc.setup(env.spotify)
			}

			state := env.startLogin(t)
			resp, _ := env.get(t, "/spotify/callback?"+tc.query(state))
			body := env.expectRedirect(t, resp, "/")
			if !strings.Contains(body, tc.message) {
				t.Errorf("expected flash %q in:\n%s", tc.message, body)
			}

			if _, err := env.app.profiles.GetBySpotifyID(context.Background(), env.spotify.User.ID); !errors.Is(err, shared.ErrProfileNotFound) {
				t.Errorf("expected no profile, got %v", err)
			}
		})
	}

	t.Run("State Is Single Use", func(t *testing.T) {
		env := newTestEnv(t)
		state := env.startLogin(t)
		env.get(t, "/spotify/callback?code="+tu.FakeCode+"&state="+state)

		resp, _ := env.get(t, "/spotify/callback?code="+tu.FakeCode+"&state="+state)
		body := env.expectRedirect(t, resp, "/")
		if !strings.Contains(body, "State mismatch") {
			t.Error("replayed state was accepted")
		}
	})
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/wraps", "/settings", "/profile", "/wraps/abc/slides/0", "/wraps/abc/export"} {
		t.Run(path, func(t *testing.T) {
			resp, _ := env.get(t, path)
			if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
				t.Errorf("GET %s = %d %s, want 302 /login", path, resp.StatusCode, resp.Header.Get("Location"))
			}
		})
	}

	t.Run("Delete Wrap Is JSON", func(t *testing.T) {
		resp, body := env.do(t, http.MethodDelete, "/wraps/abc", nil, "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
		if !strings.Contains(body, "error") {
			t.Errorf("body = %s", body)
		}
	})
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp, body := env.get(t, "/logout")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "You have been logged out.") {
		t.Errorf("logout page not rendered:\n%s", body)
	}

	resp, _ = env.get(t, "/wraps")
	if resp.Header.Get("Location") != "/login" {
		t.Error("still logged in after logout")
	}
}

func TestWraps(t *testing.T) {
	t.Run("Create And View Slides", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)
		id := env.createWrap(t, models.TimeframeYear)

		resp, body := env.get(t, "/wraps/"+id+"/slides/0")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("slide 0 status = %d", resp.StatusCode)
		}
		if !strings.Contains(body, "Your 1 year Wrapped") {
			t.Errorf("intro slide missing title:\n%s", body)
		}

		_, body = env.get(t, "/wraps/"+id+"/slides/1")
		if !strings.Contains(body, "Song A") || !strings.Contains(body, "Song B") {
			t.Errorf("top songs slide missing tracks:\n%s", body)
		}

		_, body = env.get(t, "/wraps/"+id+"/slides/3")
		if !strings.Contains(body, "rock") {
			t.Errorf("genres slide missing genre:\n%s", body)
		}

		_, body = env.get(t, "/wraps/"+id+"/slides/6?lang=ru")
		if !strings.Contains(body, "ru: description") {
			t.Errorf("commentary slide not in russian:\n%s", body)
		}

		var sawRange bool
		for _, r := range env.spotify.Requests() {
			if strings.Contains(r, "time_range=medium_term") {
				sawRange = true
			}
		}
		if !sawRange {
			t.Errorf("1 year did not request medium_term: %v", env.spotify.Requests())
		}

		_, body = env.get(t, "/wraps")
		if !strings.Contains(body, "/wraps/"+id+"/slides/0") {
			t.Errorf("wrap missing from list:\n%s", body)
		}
	})

	t.Run("Show Redirects To First Slide", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)
		id := env.createWrap(t, models.TimeframeMonth)

		resp, _ := env.get(t, "/wraps/"+id)
		if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/wraps/"+id+"/slides/0" {
			t.Errorf("GET /wraps/{id} = %d %s", resp.StatusCode, resp.Header.Get("Location"))
		}
	})

	t.Run("Bad Page", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)
		id := env.createWrap(t, models.TimeframeMonth)

		for _, page := range []string{"8", "-1", "abc"} {
			resp, _ := env.get(t, "/wraps/"+id+"/slides/"+page)
			if resp.StatusCode != http.StatusNotFound {
				t.Errorf("page %s status = %d, want 404", page, resp.StatusCode)
			}
		}
	})

	t.Run("Missing Timeframe", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)

		resp, _ := env.postForm(t, "/wraps", url.Values{"timeframe": {" "}})
		body := env.expectRedirect(t, resp, "/wraps")
		if !strings.Contains(body, "Invalid request.") {
			t.Errorf("expected invalid request flash:\n%s", body)
		}
	})

	t.Run("Unknown Timeframe", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)
		before := len(env.spotify.Requests())

		resp, _ := env.postForm(t, "/wraps", url.Values{"timeframe": {"x/../../escaped"}})
		body := env.expectRedirect(t, resp, "/wraps")
		if !strings.Contains(body, "Invalid request.") || !strings.Contains(body, "No wraps yet.") {
			t.Errorf("expected invalid request flash and no wraps:\n%s", body)
		}
		if reqs := env.spotify.Requests(); len(reqs) != before {
			t.Errorf("expected no Spotify calls, got %v", reqs[before:])
		}
	})

	t.Run("Spotify Failure", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.login(t)

		err := env.app.profiles.UpdateTokens(context.Background(), p.ID(), &oauth2.Token{
			AccessToken: "revoked",
			Expiry:      time.Now().Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("UpdateTokens() error = %v", err)
		}

		resp, _ := env.postForm(t, "/wraps", url.Values{"timeframe": {models.TimeframeMonth}})
		body := env.expectRedirect(t, resp, "/wraps")
		if !strings.Contains(body, "No wraps yet.") {
			t.Error("wrap stored after spotify failure")
		}
	})

	t.Run("Refreshes Expired Token", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.login(t)
		expireToken(t, env, p)

		env.createWrap(t, models.TimeframeMonth)

		stored, err := env.app.profiles.Get(context.Background(), p.ID())
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if stored.Token().AccessToken != tu.FakeRefreshed {
			t.Errorf("refreshed token not stored, got %q", stored.Token().AccessToken)
		}
	})

	t.Run("Refresh Failure", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.login(t)
		expireToken(t, env, p)
		env.spotify.FailRefresh = true

		resp, _ := env.postForm(t, "/wraps", url.Values{"timeframe": {models.TimeframeMonth}})
		body := env.expectRedirect(t, resp, "/wraps")
		if !strings.Contains(body, "Failed to refresh Spotify token.") {
			t.Errorf("expected refresh flash:\n%s", body)
		}
	})

	t.Run("Export", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)
		id := env.createWrap(t, models.TimeframeMonth)

		resp, body := env.get(t, "/wraps/"+id+"/export?format=csv")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
			t.Errorf("Content-Type = %q", ct)
		}
		if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") || !strings.Contains(cd, ".csv") {
			t.Errorf("Content-Disposition = %q", cd)
		}
		if !strings.HasPrefix(body, "section,rank,value") {
			t.Errorf("csv body = %s", body)
		}

		resp, body = env.get(t, "/wraps/"+id+"/export")
		var decoded map[string]any
		if err := json.Unmarshal([]byte(body), &decoded); err != nil || decoded["id"] != id {
			t.Errorf("default export is not the wrap json: %v %s", err, body)
		}

		resp, _ = env.get(t, "/wraps/"+id+"/export?format=pdf")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("unknown format status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)
		id := env.createWrap(t, models.TimeframeMonth)

		resp, body := env.do(t, http.MethodDelete, "/wraps/"+id, nil, "")
		if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Wrap deleted successfully.") {
			t.Errorf("delete = %d %s", resp.StatusCode, body)
		}

		resp, body = env.do(t, http.MethodPost, "/wraps/"+id+"/delete", nil, "")
		if resp.StatusCode != http.StatusNotFound || !strings.Contains(body, "Wrap not found.") {
			t.Errorf("second delete = %d %s", resp.StatusCode, body)
		}
	})

	t.Run("Export Filename Is Sanitized", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.login(t)

		w := models.NewWrap(p.ID(), `a";-filename=evil.html`, models.WrapStats{}, nil)
		if err := env.app.wraps.Create(context.Background(), w); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		resp, _ := env.get(t, "/wraps/"+w.ID()+"/export")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		disposition, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
		if err != nil || disposition != "attachment" {
			t.Fatalf("Content-Disposition = %q (%v)", resp.Header.Get("Content-Disposition"), err)
		}
		if len(params) != 1 || !strings.HasSuffix(params["filename"], "_a-filename-evil-html.json") {
			t.Errorf("unexpected disposition params %v", params)
		}
	})

	t.Run("Other Profiles Wraps", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)

		ctx := context.Background()
		other := models.NewProfile(models.SpotifyUser{ID: "someone-else"})
		if err := env.app.profiles.Create(ctx, other); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		w := models.NewWrap(other.ID(), models.TimeframeMonth, models.WrapStats{TopSongs: []string{"Secret Song"}}, nil)
		if err := env.app.wraps.Create(ctx, w); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		resp, _ := env.get(t, "/wraps/"+w.ID()+"/slides/1")
		body := env.expectRedirect(t, resp, "/wraps")
		if !strings.Contains(body, "Wrap not found.") || strings.Contains(body, "Secret Song") {
			t.Errorf("foreign wrap not hidden:\n%s", body)
		}

		resp, _ = env.do(t, http.MethodDelete, "/wraps/"+w.ID(), nil, "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("foreign delete status = %d, want 404", resp.StatusCode)
		}
		if _, err := env.app.wraps.Get(ctx, w.ID()); err != nil {
			t.Errorf("foreign wrap was deleted: %v", err)
		}
	})
}

func expireToken(t *testing.T, env *testEnv, p *models.Profile) {
	t.Helper()
	err := env.app.profiles.UpdateTokens(context.Background(), p.ID(), &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: tu.FakeRefreshToken,
		Expiry:       time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("UpdateTokens() error = %v", err)
	}
}

func TestContact(t *testing.T) {
	t.Run("Form", func(t *testing.T) {
		env := newTestEnv(t)
		resp, body := env.get(t, "/contact")
		if resp.StatusCode != http.StatusOK || !strings.Contains(body, `name="subject"`) {
			t.Errorf("contact form = %d\n%s", resp.StatusCode, body)
		}
	})

	t.Run("Required Fields", func(t *testing.T) {
		env := newTestEnv(t)
		_, body := env.postForm(t, "/contact", url.Values{"subject": {"hi"}})
		if !strings.Contains(body, "All fields are required") {
			t.Errorf("missing required message:\n%s", body)
		}
		if len(env.mailer.Subjects) != 0 {
			t.Error("mail sent without a message")
		}
	})

	t.Run("Sent", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)

		_, body := env.postForm(t, "/contact", url.Values{"subject": {"Hello"}, "message": {"Nice app"}})
		if !strings.Contains(body, "Email sent successfully") {
			t.Errorf("missing success message:\n%s", body)
		}
		if len(env.mailer.Subjects) != 1 || !strings.HasSuffix(env.mailer.Subjects[0], "Hello") {
			t.Fatalf("subjects = %v", env.mailer.Subjects)
		}
		if !strings.Contains(env.mailer.Bodies[0], "Nice app") || !strings.Contains(env.mailer.Bodies[0], "Test Listener") {
			t.Errorf("body = %q", env.mailer.Bodies[0])
		}
	})

	t.Run("Send Failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.mailer.Err = errors.New("smtp down")

		_, body := env.postForm(t, "/contact", url.Values{"subject": {"Hello"}, "message": {"Nice app"}})
		if !strings.Contains(body, "Error sending email: smtp down") {
			t.Errorf("missing failure message:\n%s", body)
		}
	})
}

func TestSettings(t *testing.T) {
	t.Run("Theme", func(t *testing.T) {
		env := newTestEnv(t)

		resp, _ := env.get(t, "/settings/theme/dark")
		body := env.expectRedirect(t, resp, "/")
		if !strings.Contains(body, `class="theme-dark"`) {
			t.Errorf("theme not applied:\n%s", body)
		}

		resp, _ = env.get(t, "/settings/theme/neon")
		body = env.expectRedirect(t, resp, "/")
		if !strings.Contains(body, `class="theme-dark"`) || !strings.Contains(body, "Invalid theme.") {
			t.Errorf("unknown theme changed the setting:\n%s", body)
		}
	})

	t.Run("Language", func(t *testing.T) {
		env := newTestEnv(t)

		resp, _ := env.get(t, "/settings/language/az")
		body := env.expectRedirect(t, resp, "/")
		if !strings.Contains(body, `lang="az"`) {
			t.Errorf("language not applied:\n%s", body)
		}
	})

	t.Run("Language Redirects Back Locally", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)

		cases := map[string]string{
			env.server.URL + "/wraps?x=1":           "/wraps?x=1",
			"/settings":                             "/settings",
			"https://evil.example/phish":            "/",
			"//evil.example/phish":                  "/",
			"http://evil.example" + "/wraps":        "/",
			"javascript:alert(1)":                   "/",
			env.server.URL + "//evil.example/phish": "/",
		}
		for referer, want := range cases {
			req, err := http.NewRequest(http.MethodGet, env.server.URL+"/settings/language/ru", nil)
			if err != nil {
				t.Fatal(err)
			}
			req.Header.Set("Referer", referer)

			resp, _ := env.send(t, req)
			if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != want {
				t.Errorf("Referer %q: got %d %q, want %q", referer, resp.StatusCode, resp.Header.Get("Location"), want)
			}
		}
	})

	t.Run("Delete Account", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.login(t)
		env.createWrap(t, models.TimeframeMonth)

		resp, _ := env.postForm(t, "/settings/delete-account", nil)
		body := env.expectRedirect(t, resp, "/")
		if !strings.Contains(body, "Your account data has been deleted, and you have been logged out.") {
			t.Errorf("missing deletion flash:\n%s", body)
		}

		ctx := context.Background()
		if _, err := env.app.profiles.Get(ctx, p.ID()); !errors.Is(err, shared.ErrProfileNotFound) {
			t.Errorf("profile still stored: %v", err)
		}
		wraps, err := env.app.wraps.List(ctx, map[string]any{"profile_id": p.ID()})
		if err != nil || len(wraps) != 0 {
			t.Errorf("wraps left after deletion: %d %v", len(wraps), err)
		}

		resp, _ = env.get(t, "/wraps")
		if resp.Header.Get("Location") != "/login" {
			t.Error("still logged in after deleting the account")
		}
	})

	t.Run("Delete Account Without Profile", func(t *testing.T) {
		env := newTestEnv(t)

		resp, _ := env.postForm(t, "/settings/delete-account", nil)
		if resp.Header.Get("Location") != "/settings" {
			t.Fatalf("Location = %q, want /settings", resp.Header.Get("Location"))
		}

		// /settings needs a login, so read the flash from the next page instead.
		_, body := env.get(t, "/")
		if !strings.Contains(body, "No account data found to delete.") {
			t.Errorf("missing flash:\n%s", body)
		}
	})
}

func multipartBody(t *testing.T, fields map[string]string, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="picture"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(data)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestProfile(t *testing.T) {
	t.Run("Update Details And Picture", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.login(t)

		body, ct := multipartBody(t, map[string]string{"bio": "I like music", "favorite_genres": "jazz, indie"}, "me.PNG", "image/png", []byte("png"))
		resp, _ := env.do(t, http.MethodPost, "/profile", body, ct)
		page := env.expectRedirect(t, resp, "/profile")
		if !strings.Contains(page, "Profile updated.") || !strings.Contains(page, "I like music") {
			t.Errorf("profile page:\n%s", page)
		}

		stored, err := env.app.profiles.Get(context.Background(), p.ID())
		if err != nil {
			t.Fatal(err)
		}
		key := stored.ProfilePicture()
		if !strings.HasPrefix(key, "profiles/"+p.ID()+"/") || !strings.HasSuffix(key, ".png") {
			t.Errorf("picture key = %q", key)
		}
		if got := stored.FavoriteGenreList(); len(got) != 2 || got[0] != "jazz" {
			t.Errorf("favorite genres = %v", got)
		}

		resp, _ = env.get(t, "/profile/picture")
		if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "https://objects.test/"+key {
			t.Errorf("picture redirect = %d %s", resp.StatusCode, resp.Header.Get("Location"))
		}

		body, ct = multipartBody(t, nil, "new.jpg", "image/jpeg", []byte("jpg"))
		env.do(t, http.MethodPost, "/profile", body, ct)
		if len(env.objects.removed) != 1 || env.objects.removed[0] != key {
			t.Errorf("old picture not removed: %v", env.objects.removed)
		}
	})

	t.Run("Rejects Non Images", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)

		body, ct := multipartBody(t, nil, "notes.txt", "text/plain", []byte("hello"))
		resp, _ := env.do(t, http.MethodPost, "/profile", body, ct)
		page := env.expectRedirect(t, resp, "/profile")
		if !strings.Contains(page, "Profile pictures must be images.") {
			t.Errorf("missing flash:\n%s", page)
		}
	})

	t.Run("Bio Too Long", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)

		resp, _ := env.postForm(t, "/profile", url.Values{"bio": {strings.Repeat("x", 501)}})
		page := env.expectRedirect(t, resp, "/profile")
		if !strings.Contains(page, "Bio must be at most 500 characters.") {
			t.Errorf("missing validation flash:\n%s", page)
		}
	})

	t.Run("No Picture", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)

		resp, _ := env.get(t, "/profile/picture")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestCSRF(t *testing.T) {
	t.Run("Missing Token", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)

		req, err := http.NewRequest(http.MethodPost, env.server.URL+"/wraps", strings.NewReader(url.Values{"timeframe": {models.TimeframeMonth}}.Encode()))
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, _ := env.send(t, req)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
		_, body := env.get(t, "/wraps")
		if !strings.Contains(body, "No wraps yet.") {
			t.Error("wrap created without a form token")
		}
	})

	t.Run("Missing Token On Delete", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)
		id := env.createWrap(t, models.TimeframeMonth)

		req, err := http.NewRequest(http.MethodDelete, env.server.URL+"/wraps/"+id, nil)
		if err != nil {
			t.Fatal(err)
		}
		resp, body := env.send(t, req)
		if resp.StatusCode != http.StatusForbidden || !strings.Contains(body, `"error"`) {
			t.Errorf("delete without token = %d %s", resp.StatusCode, body)
		}
		if _, err := env.app.wraps.Get(context.Background(), id); err != nil {
			t.Errorf("wrap deleted without a form token: %v", err)
		}
	})

	t.Run("Form Field", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)

		_, page := env.get(t, "/wraps")
		m := regexp.MustCompile(`name="csrf_token" value="([^"]+)"`).FindStringSubmatch(page)
		if m == nil {
			t.Fatalf("wraps page has no token field:\n%s", page)
		}

		form := url.Values{"timeframe": {models.TimeframeMonth}, csrfField: {html.UnescapeString(m[1])}}
		req, err := http.NewRequest(http.MethodPost, env.server.URL+"/wraps", strings.NewReader(form.Encode()))
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, _ := env.send(t, req)
		if resp.StatusCode != http.StatusFound || !strings.HasSuffix(resp.Header.Get("Location"), "/slides/0") {
			t.Errorf("POST /wraps with form token = %d %s", resp.StatusCode, resp.Header.Get("Location"))
		}
	})

	t.Run("Foreign Origin", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)

		req, err := http.NewRequest(http.MethodPost, env.server.URL+"/settings/delete-account", nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set(csrfHeader, env.token(t))
		req.Header.Set("Origin", "https://evil.example")

		resp, _ := env.send(t, req)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})
}

func TestOperational(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Healthz", func(t *testing.T) {
		resp, body := env.get(t, "/healthz")
		if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"ok"`) {
			t.Errorf("healthz = %d %s", resp.StatusCode, body)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		env.get(t, "/")
		resp, body := env.get(t, "/metrics")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if !strings.Contains(body, `http_requests_total{method="GET",path="GET /{$}",status="200"}`) {
			t.Errorf("request counter missing:\n%s", body)
		}
	})

	t.Run("Static", func(t *testing.T) {
		resp, body := env.get(t, "/static/style.css")
		if resp.StatusCode != http.StatusOK || !strings.Contains(body, "theme-dark") {
			t.Errorf("static = %d", resp.StatusCode)
		}
	})

	t.Run("Request ID", func(t *testing.T) {
		resp, _ := env.get(t, "/")
		if resp.Header.Get("X-Request-ID") == "" {
			t.Error("missing request id header")
		}
	})
}
