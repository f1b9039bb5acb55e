// Package web implements the server-rendered wrapped web application.
//
// # Views
//
// Every page is an html/template pair: templates/base.html provides the layout (navigation, theme,
// flash messages) and a page template fills the "content" block. Wrap presentations use one template per
// slide (wrap_base, wrap1 … wrap7) selected by [models.SlideKind.Template].
//
// # State
//
//   - Session cookie (gorilla/sessions): OAuth state, flash messages, theme and language
//   - Auth cookie: an HS256 JWT naming the logged-in profile (see server.GenerateToken)
//   - Database: profiles with cached Spotify tokens, and wraps
//
// # Authentication Flow
//
//  1. /spotify/login stores a random state in the session and redirects to Spotify
//  2. /spotify/callback checks the state, exchanges the code, fetches /me and upserts the profile
//  3. The auth cookie is set and the user lands on / with a "Logged in as" flash
//
// Spotify tokens are refreshed on demand while building a wrap; refreshed tokens are written back
// to the profile.
package web
