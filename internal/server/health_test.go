package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docqa-go/internal/corpus"
)

type fakePinger struct {
	name  string
	err   error
	delay time.Duration
}

func (f *fakePinger) Name() string { return f.name }

func (f *fakePinger) Ping(ctx context.Context) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil, nil)
	w := do(t, s, http.MethodGet, "/api/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestHandleReady(t *testing.T) {
	t.Parallel()

	down := errors.New("connection refused")
	tests := []struct {
		name      string
		pingers   []Pinger
		wantCode  int
		wantReady bool
		wantOK    []bool
	}{
		{
			name:      "no pingers",
			wantCode:  http.StatusOK,
			wantReady: true,
			wantOK:    []bool{},
		},
		{
			name:      "all healthy",
			pingers:   []Pinger{&fakePinger{name: "llm:ollama"}, &fakePinger{name: "store"}},
			wantCode:  http.StatusOK,
			wantReady: true,
			wantOK:    []bool{true, true},
		},
		{
			name:      "store down",
			pingers:   []Pinger{&fakePinger{name: "llm:ollama"}, &fakePinger{name: "store", err: down}},
			wantCode:  http.StatusServiceUnavailable,
			wantOK:    []bool{true, false},
		},
		{
			name:      "all down",
			pingers:   []Pinger{&fakePinger{name: "llm:ollama", err: down}, &fakePinger{name: "store", err: down}},
			wantCode:  http.StatusServiceUnavailable,
			wantOK:    []bool{false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, _ := newTestServer(t, nil, &Config{Pingers: tt.pingers})
			w := do(t, s, http.MethodGet, "/api/ready", "")

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var resp readyResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Ready != tt.wantReady {
				t.Errorf("ready = %v, want %v", resp.Ready, tt.wantReady)
			}
			if resp.Checks == nil {
				t.Fatal("checks must encode as an array, got null")
			}
			if len(resp.Checks) != len(tt.wantOK) {
				t.Fatalf("got %d checks, want %d", len(resp.Checks), len(tt.wantOK))
			}
			for i, c := range resp.Checks {
				if c.Name != tt.pingers[i].Name() {
					t.Errorf("checks[%d].name = %q, want %q", i, c.Name, tt.pingers[i].Name())
				}
				if c.OK != tt.wantOK[i] {
					t.Errorf("checks[%d].ok = %v, want %v", i, c.OK, tt.wantOK[i])
				}
				if c.OK == (c.Error != "") {
					t.Errorf("checks[%d]: ok=%v with error %q", i, c.OK, c.Error)
				}
			}
		})
	}
}

// countingPinger records how many probes are in flight at once.
type countingPinger struct {
	name     string
	inFlight *atomic.Int32
	peak     *atomic.Int32
	release  <-chan struct{}
}

func (p *countingPinger) Name() string { return p.name }

func (p *countingPinger) Ping(ctx context.Context) error {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestProbeAll_RunsConcurrentlyInOrder(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	pingers := []Pinger{
		&countingPinger{name: "a", inFlight: &inFlight, peak: &peak, release: release},
		&countingPinger{name: "b", inFlight: &inFlight, peak: &peak, release: release},
		&fakePinger{name: "c", delay: 10 * time.Millisecond},
	}

	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for peak.Load() < 2 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		close(release)
	}()

	checks := probeAll(context.Background(), pingers)

	if peak.Load() < 2 {
		t.Errorf("peak concurrent probes = %d, want 2", peak.Load())
	}
	for i, want := range []string{"a", "b", "c"} {
		if checks[i].Name != want || !checks[i].OK {
			t.Errorf("checks[%d] = %+v, want ok %q", i, checks[i], want)
		}
	}
}

func TestProbeAll_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checks := probeAll(ctx, []Pinger{&fakePinger{name: "slow", delay: time.Minute}})
	if checks[0].OK || checks[0].Error == "" {
		t.Errorf("check = %+v, want failure from cancelled context", checks[0])
	}
}

// fakeHealthCheck is a test double for provider.HealthCheckConfig.
type fakeHealthCheck struct{ err error }

func (f *fakeHealthCheck) HealthCheck(context.Context) error { return f.err }

// fakeChatModel is a minimal model.BaseChatModel for the Generate fallback.
type fakeChatModel struct {
	err   error
	calls int
}

func (f *fakeChatModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage("pong", nil), nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestLLMPinger(t *testing.T) {
	t.Parallel()

	t.Run("health check preferred over generate", func(t *testing.T) {
		t.Parallel()
		m := &fakeChatModel{}
		p := NewLLMPinger(m, &fakeHealthCheck{}, "ollama")
		if err := p.Ping(context.Background()); err != nil {
			t.Fatalf("Ping() error = %v", err)
		}
		if m.calls != 0 {
			t.Errorf("Generate called %d times, want 0", m.calls)
		}
		if p.Name() != "llm:ollama" {
			t.Errorf("Name() = %q", p.Name())
		}
	})

	t.Run("health check failure", func(t *testing.T) {
		t.Parallel()
		p := NewLLMPinger(nil, &fakeHealthCheck{err: errors.New("503")}, "openai")
		if err := p.Ping(context.Background()); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("generate fallback", func(t *testing.T) {
		t.Parallel()
		m := &fakeChatModel{}
		if err := NewLLMPinger(m, nil, "bedrock").Ping(context.Background()); err != nil {
			t.Fatalf("Ping() error = %v", err)
		}
		if m.calls != 1 {
			t.Errorf("Generate called %d times, want 1", m.calls)
		}
		failing := &fakeChatModel{err: errors.New("denied")}
		if err := NewLLMPinger(failing, nil, "bedrock").Ping(context.Background()); err == nil {
			t.Error("expected error from failing model")
		}
	})
}

// pingStore is a store.FragmentStore whose Ping returns err.
type pingStore struct{ err error }

func (s pingStore) Load(context.Context) ([]corpus.Fragment, error) { return nil, nil }
func (s pingStore) Save(context.Context, []corpus.Fragment) error   { return nil }
func (s pingStore) Ping(context.Context) error                      { return s.err }
func (s pingStore) SavedAt(context.Context) (time.Time, error)      { return time.Time{}, nil }
func (s pingStore) Close() error                                    { return nil }

func TestStorePinger(t *testing.T) {
	t.Parallel()

	if err := NewStorePinger(pingStore{}).Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if err := NewStorePinger(pingStore{err: errors.New("locked")}).Ping(context.Background()); err == nil {
		t.Error("expected error")
	}
}

// vecEmbedder returns vecs or err from Embed.
type vecEmbedder struct {
	vecs [][]float32
	err  error
}

func (e vecEmbedder) Embed(context.Context, []string) ([][]float32, error) { return e.vecs, e.err }

func TestEmbedderPinger(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		emb     vecEmbedder
		wantErr bool
	}{
		{"ok", vecEmbedder{vecs: [][]float32{{0.1, 0.2}}}, false},
		{"error", vecEmbedder{err: errors.New("unreachable")}, true},
		{"no vectors", vecEmbedder{}, true},
		{"empty vector", vecEmbedder{vecs: [][]float32{{}}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := NewEmbedderPinger(tc.emb, "ollama")
			err := p.Ping(context.Background())
			if (err != nil) != tc.wantErr {
				t.Errorf("Ping() error = %v, wantErr %v", err, tc.wantErr)
			}
			if p.Name() != "embedder:ollama" {
				t.Errorf("Name() = %q", p.Name())
			}
		})
	}
}
