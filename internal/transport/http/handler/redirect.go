package handler

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iruldev/shortlink-api/internal/domain"
	"github.com/iruldev/shortlink-api/internal/transport/http/errorfunnel"
	"github.com/iruldev/shortlink-api/internal/transport/http/middleware"
	"github.com/iruldev/shortlink-api/internal/usecase/analytics"
	"github.com/iruldev/shortlink-api/internal/usecase/redirect"
)

// challengeTemplate is the password-challenge page. Styling is free; the
// form contract is fixed: POST field "password" to /api/v1/{short_code}/verify.
var challengeTemplate = template.Must(template.New("challenge").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Protected link</title>
  <style>
    body { font-family: system-ui, sans-serif; display: flex; justify-content: center;
           align-items: center; min-height: 100vh; margin: 0; background: #f4f4f5; }
    .card { background: #fff; padding: 2rem; border-radius: 8px; max-width: 22rem;
            box-shadow: 0 1px 4px rgba(0,0,0,.12); }
    input[type=password] { width: 100%; padding: .5rem; margin: .75rem 0; box-sizing: border-box; }
    button { width: 100%; padding: .5rem; cursor: pointer; }
    .error { color: #b91c1c; font-size: .875rem; }
  </style>
</head>
<body>
  <div class="card">
    <h1>This link is protected</h1>
    <p>Enter the password to continue.</p>
    {{if .Error}}<p class="error">Wrong password, try again.</p>{{end}}
    <form method="post" action="/api/v1/{{.ShortCode}}/verify">
      <input type="password" name="password" placeholder="Password" autofocus required>
      <button type="submit">Unlock</button>
    </form>
  </div>
</body>
</html>
`))

type challengeData struct {
	ShortCode string
	Error     bool
}

// RedirectHandler serves short-code resolution and password verification.
type RedirectHandler struct {
	redirects *redirect.Service
	funnel    *errorfunnel.Funnel
}

// NewRedirectHandler creates a RedirectHandler.
func NewRedirectHandler(redirects *redirect.Service, funnel *errorfunnel.Funnel) *RedirectHandler {
	return &RedirectHandler{redirects: redirects, funnel: funnel}
}

func clickInfo(r *http.Request) analytics.ClickInfo {
	return analytics.ClickInfo{
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
	}
}

// Resolve handles GET /api/v1/{short_code}: 307 to the destination, 307 to
// the expired page, or the 200 HTML challenge for protected links.
func (h *RedirectHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "short_code")

	res, err := h.redirects.Resolve(r.Context(), shortCode, clickInfo(r))
	if err != nil {
		h.funnel.Write(w, r, err)
		return
	}

	switch res.Outcome {
	case redirect.OutcomeExpired:
		http.Redirect(w, r, "/"+res.Target, http.StatusTemporaryRedirect)
	case redirect.OutcomeChallenge:
		h.writeChallenge(w, shortCode, false, http.StatusOK)
	default:
		http.Redirect(w, r, res.Target, http.StatusTemporaryRedirect)
	}
}

// Verify handles POST /api/v1/{short_code}/verify: 303 on a matching
// password, the challenge page with HTTP 401 on a mismatch.
func (h *RedirectHandler) Verify(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "short_code")

	if err := r.ParseForm(); err != nil {
		h.funnel.Write(w, r, domain.WrapError(domain.ErrValidation, "malformed form body"))
		return
	}
	password := r.PostFormValue("password")

	res, err := h.redirects.VerifyPassword(r.Context(), shortCode, password, clickInfo(r))
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			h.writeChallenge(w, shortCode, true, http.StatusUnauthorized)
			return
		}
		h.funnel.Write(w, r, err)
		return
	}

	if res.Outcome == redirect.OutcomeExpired {
		http.Redirect(w, r, "/"+res.Target, http.StatusTemporaryRedirect)
		return
	}
	http.Redirect(w, r, res.Target, http.StatusSeeOther)
}

func (h *RedirectHandler) writeChallenge(w http.ResponseWriter, shortCode string, withError bool, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = challengeTemplate.Execute(w, challengeData{ShortCode: shortCode, Error: withError})
}
