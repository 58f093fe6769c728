package cybereason

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const (
	testUser     = "analyst@example.com"
	testPassword = "s3cret"
)

var fixedNow = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

// capturedRequest is one non-login request seen by the fake console.
type capturedRequest struct {
	Method string
	Path   string
	Body   string
	Cookie string
}

// fakeConsole emulates the parts of a Cybereason console the client talks to.
// Data calls without the current session cookie are answered with 401, unless
// keepSessions is set: then every issued session stays valid except expired.
type fakeConsole struct {
	gen Generation
	srv *httptest.Server

	logins atomic.Int32
	calls  atomic.Int32
	// expire forces the next N data calls to answer 401 regardless of cookie.
	expire atomic.Int32

	noCookie       bool
	status         int
	records        []string
	updateResponse string
	// cookiePath scopes the login cookie; empty means "/".
	cookiePath string
	// rotate issues a fresh session on every successful data call.
	rotate bool

	keepSessions bool
	// gate, when set, holds 401s for the expired session until gateSize
	// of them are waiting, so concurrent callers all see the same expiry.
	gate     chan struct{}
	gateSize atomic.Int32
	gated    atomic.Int32

	mu       sync.Mutex
	session  string
	issued   map[string]bool
	expired  string
	rotated  int
	captured []capturedRequest
}

func newFakeConsole(t *testing.T, gen Generation) *fakeConsole {
	t.Helper()
	f := &fakeConsole{gen: gen, updateResponse: `{"status":"SUCCESS"}`}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeConsole) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == f.gen.LoginPath() {
		f.handleLogin(w, r)
		return
	}

	f.calls.Add(1)
	body, _ := io.ReadAll(r.Body)
	cookie := ""
	if c, err := r.Cookie(SessionCookie); err == nil {
		cookie = c.Value
	}
	f.mu.Lock()
	f.captured = append(f.captured, capturedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body), Cookie: cookie})
	valid := cookie != "" && cookie == f.session
	if f.keepSessions {
		valid = f.issued[cookie] && cookie != f.expired
	}
	var gate chan struct{}
	if cookie != "" && cookie == f.expired {
		gate = f.gate
	}
	f.mu.Unlock()

	if f.expire.Load() > 0 {
		f.expire.Add(-1)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if !valid {
		if gate != nil {
			f.waitGate(gate)
		}
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, `{"status":"FAILURE","message":"boom"}`)
		return
	}

	if f.rotate {
		f.mu.Lock()
		f.rotated++
		f.session = fmt.Sprintf("rot-%d", f.rotated)
		f.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: f.session, Path: "/"})
	}

	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodPut || r.URL.Path == unifiedUpdatePath {
		_, _ = io.WriteString(w, f.updateResponse)
		return
	}
	_, _ = io.WriteString(w, f.page())
}

func (f *fakeConsole) handleLogin(w http.ResponseWriter, r *http.Request) {
	n := f.logins.Add(1)
	_ = r.ParseForm()
	if r.PostForm.Get("username") != testUser || r.PostForm.Get("password") != testPassword {
		// The console re-renders its login page with 200 on bad credentials.
		_, _ = io.WriteString(w, "<html>login</html>")
		return
	}
	if !f.noCookie {
		session := fmt.Sprintf("sess-%d", n)
		f.mu.Lock()
		f.session = session
		if f.issued == nil {
			f.issued = map[string]bool{}
		}
		f.issued[session] = true
		f.mu.Unlock()
		path := f.cookiePath
		if path == "" {
			path = "/"
		}
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: session, Path: path})
	}
	_, _ = io.WriteString(w, "<html>welcome</html>")
}

// expireSession invalidates one issued session. With n > 0 the 401s for it
// are released together once n requests are waiting.
func (f *fakeConsole) expireSession(session string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = session
	if n > 0 {
		f.gate = make(chan struct{})
		f.gateSize.Store(int32(n))
	}
}

func (f *fakeConsole) waitGate(gate chan struct{}) {
	if f.gated.Add(1) == f.gateSize.Load() {
		close(gate)
	}
	select {
	case <-gate:
	case <-time.After(5 * time.Second):
	}
}

// page renders f.records in the generation's response envelope, byte for byte.
func (f *fakeConsole) page() string {
	if f.gen.Name() == "v1" {
		parts := make([]string, 0, len(f.records))
		for _, rec := range f.records {
			parts = append(parts, strconv.Quote(guidOf(rec))+":"+rec)
		}
		return fmt.Sprintf(`{"data":{"resultIdToElementDataMap":{%s},"totalResults":%d},"status":"SUCCESS"}`,
			strings.Join(parts, ","), len(f.records))
	}
	return fmt.Sprintf(`{"data":{"data":[%s],"totalHits":%d},"status":"SUCCESS"}`,
		strings.Join(f.records, ","), len(f.records))
}

func (f *fakeConsole) requests() []capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]capturedRequest, len(f.captured))
	copy(out, f.captured)
	return out
}

func (f *fakeConsole) lastRequest(t *testing.T) capturedRequest {
	t.Helper()
	reqs := f.requests()
	if len(reqs) == 0 {
		t.Fatal("no request captured")
	}
	return reqs[len(reqs)-1]
}

func guidOf(rec string) string {
	var v struct {
		GUID       string `json:"guid"`
		GUIDString string `json:"guidString"`
	}
	_ = json.Unmarshal([]byte(rec), &v)
	if v.GUID != "" {
		return v.GUID
	}
	return v.GUIDString
}

func testConfig(f *fakeConsole) Config {
	return Config{
		BaseURL:        f.srv.URL,
		Username:       testUser,
		Password:       testPassword,
		VerifySSL:      true,
		APIVersion:     f.gen.Name(),
		LoginTimeout:   5 * time.Second,
		RequestTimeout: 5 * time.Second,
	}
}

func newTestClient(t *testing.T, f *fakeConsole, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	c, err := NewClient(testConfig(f), opts...)
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// loggedInClient returns a client that already holds a session.
func loggedInClient(t *testing.T, f *fakeConsole, opts ...Option) *Client {
	t.Helper()
	c := newTestClient(t, f, opts...)
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login() unexpected error: %v", err)
	}
	return c
}

// forEachGeneration runs fn once per supported API generation.
func forEachGeneration(t *testing.T, fn func(t *testing.T, gen Generation)) {
	for _, name := range Generations {
		gen, err := GenerationFor(name)
		if err != nil {
			t.Fatalf("GenerationFor(%q): %v", name, err)
		}
		t.Run(name, func(t *testing.T) { fn(t, gen) })
	}
}

// recordingAuditor captures status changes.
type recordingAuditor struct {
	mu      sync.Mutex
	changes []StatusChange
}

func (a *recordingAuditor) RecordStatusChange(_ context.Context, ch StatusChange) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.changes = append(a.changes, ch)
}

func (a *recordingAuditor) all() []StatusChange {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]StatusChange(nil), a.changes...)
}
