package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/getlantern/external-ip/auth"
	"github.com/getlantern/external-ip/common"
	"github.com/getlantern/external-ip/consensus"
	"github.com/getlantern/external-ip/source"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestServe(t *testing.T, getter consensus.GetterFunc) *ServeCmd {
	t.Helper()
	m := consensus.NewMonitor(getter, time.Hour)
	m.Logger = log.New(&bytes.Buffer{})
	return &ServeCmd{
		serverConfig: &common.ServerConfig{Port: 8443, HMACSecret: testSecret},
		monitor:      m,
	}
}

func token(t *testing.T, subject string) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken(testSecret, subject, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func get(h http.Handler, target, tok string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServeIP(t *testing.T) {
	want := consensus.FromAddrs([]netip.Addr{netip.MustParseAddr("203.0.113.5")})
	c := newTestServe(t, func(ctx context.Context) (consensus.Consensus, error) {
		return want, nil
	})
	h := c.routes()
	client := token(t, "laptop")

	if rec := get(h, "/api/v1/ip", client); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("before first refresh: status = %d", rec.Code)
	}
	if rec := get(h, "/api/v1/ip", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("without token: status = %d", rec.Code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.monitor.Run(ctx)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := c.monitor.Latest(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("monitor never refreshed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec := get(h, "/api/v1/ip", client)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got consensus.Consensus
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !got.Equal(want) {
		t.Errorf("got %s; not %s", got, want)
	}
}

func TestServeToken(t *testing.T) {
	c := newTestServe(t, func(ctx context.Context) (consensus.Consensus, error) {
		return consensus.Consensus{}, nil
	})
	h := c.routes()

	if rec := get(h, "/api/v1/token/phone", token(t, "laptop")); rec.Code != http.StatusForbidden {
		t.Errorf("non-admin: status = %d", rec.Code)
	}
	if rec := get(h, "/api/v1/token/admin", token(t, auth.AdminSubject)); rec.Code != http.StatusBadRequest {
		t.Errorf("reserved name: status = %d", rec.Code)
	}

	rec := get(h, "/api/v1/token/phone", token(t, auth.AdminSubject))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	// the minted token authenticates as the new client
	check := auth.Middleware(testSecret, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(auth.GetRequestSubject(r)))
	}))
	if rec := get(check, "/", body.Token); rec.Body.String() != "phone" {
		t.Errorf("minted token subject = %q", rec.Body.String())
	}
}

func TestServeHealth(t *testing.T) {
	c := newTestServe(t, nil)
	rec := get(c.routes(), "/api/v1/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestGetPrint(t *testing.T) {
	result := consensus.FromAddrs([]netip.Addr{netip.MustParseAddr("203.0.113.5")})

	var buf bytes.Buffer
	if err := (&GetCmd{}).print(&buf, result); err != nil {
		t.Fatal(err)
	}
	if want := "IPv4: 203.0.113.5\nIPv6: none\n"; buf.String() != want {
		t.Errorf("print = %q; not %q", buf.String(), want)
	}

	buf.Reset()
	if err := (&GetCmd{JSON: true}).print(&buf, result); err != nil {
		t.Fatal(err)
	}
	if want := "{\"ipv4\":\"203.0.113.5\"}\n"; buf.String() != want {
		t.Errorf("print --json = %q; not %q", buf.String(), want)
	}

	buf.Reset()
	if err := (&GetCmd{QR: true}).print(&buf, result); err != nil {
		t.Fatal(err)
	}
	if buf.Len() <= len("IPv4: 203.0.113.5\nIPv6: none\n") {
		t.Error("--qr rendered nothing")
	}
}

func TestEndpointReport(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/good" {
			w.Write([]byte("203.0.113.5\n"))
			return
		}
		w.Write([]byte("<html>rate limited</html>"))
	}))
	defer s.Close()

	logger := log.New(&bytes.Buffer{})
	registry := source.NewRegistry([]source.EndpointDef{{URL: s.URL + "/good"}, {URL: s.URL + "/bad"}}, logger)

	var buf bytes.Buffer
	found, err := endpointReport(context.Background(), &buf, registry, source.Options{Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0] != netip.MustParseAddr("203.0.113.5") {
		t.Errorf("found = %v; not [203.0.113.5]", found)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("report has %d lines; not 2:\n%s", len(lines), buf.String())
	}
	if want := s.URL + "/good, (Plain) -> 203.0.113.5"; lines[0] != want {
		t.Errorf("line 1 = %q; not %q", lines[0], want)
	}
	if want := s.URL + "/bad, (Plain) -> error: malformed raw IP value"; !strings.HasPrefix(lines[1], want) {
		t.Errorf("line 2 = %q; want prefix %q", lines[1], want)
	}
}

func TestEndpointReportInitError(t *testing.T) {
	registry := source.NewRegistry([]source.EndpointDef{{URL: "https://icanhazip.com/"}}, log.New(&bytes.Buffer{}))
	if _, err := endpointReport(context.Background(), io.Discard, registry, source.Options{Proxy: "gopher://proxy"}); err == nil {
		t.Error("invalid proxy accepted")
	}
}

func TestWatchRejectsNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		if err := (&WatchCmd{Interval: interval}).Run(); err == nil {
			t.Errorf("Run() with interval %s succeeded", interval)
		}
	}
}
