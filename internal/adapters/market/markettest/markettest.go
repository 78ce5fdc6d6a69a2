// Package markettest provides an in-process fake of the market site for
// tests.
package markettest

import (
	"fmt"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

const (
	Username      = "carrier"
	Password      = "hunter2"
	SessionCookie = "JSESSIONID"
)

// Row is one offer row of the listing table.
type Row struct {
	ID        string
	Origin    string
	OriginAt  string
	Dest      string
	DestAt    string
	Consignee string
	Weight    string
	ShipMode  string
	Action    string
}

func NewRow(id string, weightLbs int) Row {
	return Row{
		ID:        id,
		Origin:    "Decatur, AL",
		OriginAt:  "03/02/2026 08:00",
		Dest:      "Greensboro, NC",
		DestAt:    "03/03/2026 14:00",
		Consignee: "CoilPlus Carolinas",
		Weight:    fmt.Sprintf("%d lbs", weightLbs),
		ShipMode:  "COIL FLATBED",
		Action:    "action" + id,
	}
}

// Page renders a listing page holding rows inside a form with a few
// hidden fields, shaped like the market's offers page.
func Page(rows ...Row) string {
	var b strings.Builder
	b.WriteString(`<html><body><form name="respond" method="post" action="CPRespondToOffers.jsp">`)
	b.WriteString(`<input type="hidden" name="initialized" value="true">`)
	b.WriteString(`<input type="hidden" name="refreshLoads" value="false">`)
	b.WriteString(`<input type="hidden" name="pageToken" value="tok-1">`)
	b.WriteString(`<table><tr><th class="header">DSM</th><th class="header">Origin</th></tr>`)
	for _, row := range rows {
		fmt.Fprintf(&b, `<tr class="row">`+
			`<td class="dataCell">%s</td>`+
			`<td class="dataCell">%s P:%s</td>`+
			`<td class="dataCell">%s D:%s</td>`+
			`<td class="dataCell">Steel</td>`+
			`<td class="dataCell">%s</td>`+
			`<td class="dataCell">Weight: %s</td>`+
			`<td class="dataCell">%s</td>`+
			`<td class="dataCell">Open</td>`+
			`<td class="dataCell action"><input type="radio" name="%s" value="accept"><input type="radio" name="%s" value="reject"></td>`+
			`<td class="spacer"></td></tr>`,
			esc(row.ID), esc(row.Origin), esc(row.OriginAt), esc(row.Dest), esc(row.DestAt),
			esc(row.Consignee), esc(row.Weight), esc(row.ShipMode), esc(row.Action), esc(row.Action))
	}
	b.WriteString(`</table><input type="image" name="submit" src="accept.gif"></form></body></html>`)
	return b.String()
}

// LoginPage is what the market serves when a session is missing or the
// credentials were wrong.
func LoginPage() string {
	return `<html><body><form method="post" action="CPLogin.jsp"><input name="loginId" value=""><input type="password" name="password"></form></body></html>`
}

func esc(s string) string {
	return html.EscapeString(s)
}

// Server is a fake market. Handlers accept only the credentials above and
// the session cookie they hand out.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	page        string
	fetchStatus int
	submitState int
	logins      int
	fetches     int
	submissions []url.Values
	rawBodies   []string
}

func NewServer(page string) *Server {
	s := &Server{page: page, fetchStatus: http.StatusOK, submitState: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("/core/jsp/CPLogin.jsp", s.handleLogin)
	mux.HandleFunc("/core/jsp/welcome.jsp", s.handleWelcome)
	mux.HandleFunc("/market/jsp/CPRespondToOffers.jsp", s.handleOffers)
	s.Server = httptest.NewServer(mux)
	return s
}

func (s *Server) SetPage(page string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = page
}

func (s *Server) SetFetchStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchStatus = status
}

func (s *Server) SetSubmitStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitState = status
}

func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

func (s *Server) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func (s *Server) Submissions() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]url.Values, len(s.submissions))
	copy(out, s.submissions)
	return out
}

func (s *Server) RawSubmissions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.rawBodies))
	copy(out, s.rawBodies)
	return out
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.logins++
	s.mu.Unlock()

	if r.Form.Get("loginId") != Username || r.Form.Get("password") != Password {
		_, _ = w.Write([]byte(LoginPage()))
		return
	}

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "session-" + Username, Path: "/"})
	http.Redirect(w, r, "/core/jsp/welcome.jsp", http.StatusFound)
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		_, _ = w.Write([]byte(LoginPage()))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "locale", Value: "lo_DF", Path: "/"})
	_, _ = w.Write([]byte(`<html><body>Welcome</body></html>`))
}

func (s *Server) handleOffers(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		_, _ = w.Write([]byte(LoginPage()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		s.fetches++
		if s.fetchStatus != http.StatusOK {
			w.WriteHeader(s.fetchStatus)
			return
		}
		_, _ = w.Write([]byte(s.page))
	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		values, _ := url.ParseQuery(string(body))
		s.submissions = append(s.submissions, values)
		s.rawBodies = append(s.rawBodies, string(body))
		w.WriteHeader(s.submitState)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookie)
	return err == nil && cookie.Value == "session-"+Username
}
