package rag

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{" Semantic ", ModeSemantic, false},
		{"KEYWORD", ModeKeyword, false},
		{"hybrid", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseMode(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestResolveCapability(t *testing.T) {
	t.Parallel()

	healthy := &fakeEmbedder{fallback: []float32{0.1, 0.2}}
	broken := &fakeEmbedder{err: errors.New("model not found")}
	empty := &fakeEmbedder{fallback: []float32{}}

	tests := []struct {
		name     string
		mode     Mode
		emb      Embedder
		want     Capability
		wantErr  bool
		wantWarn bool
	}{
		{name: "auto with healthy embedder", mode: ModeAuto, emb: healthy, want: CapabilitySemantic},
		{name: "auto with failing embedder", mode: ModeAuto, emb: broken, want: CapabilityKeyword, wantWarn: true},
		{name: "auto with no embedder", mode: ModeAuto, emb: nil, want: CapabilityKeyword, wantWarn: true},
		{name: "auto with empty vectors", mode: ModeAuto, emb: empty, want: CapabilityKeyword, wantWarn: true},
		{name: "semantic with healthy embedder", mode: ModeSemantic, emb: healthy, want: CapabilitySemantic},
		{name: "semantic with failing embedder", mode: ModeSemantic, emb: broken, want: CapabilityKeyword, wantErr: true},
		{name: "keyword never probes", mode: ModeKeyword, emb: broken, want: CapabilityKeyword},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&buf, nil))

			got, err := ResolveCapability(context.Background(), tc.mode, tc.emb, log)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ResolveCapability() error = %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ResolveCapability() = %s, want %s", got, tc.want)
			}
			if warned := strings.Contains(buf.String(), "level=WARN"); warned != tc.wantWarn {
				t.Errorf("WARN logged = %v, want %v; log:\n%s", warned, tc.wantWarn, buf.String())
			}
		})
	}
}

func TestResolveCapability_KeywordModeSkipsProbe(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{fallback: []float32{1}}
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if _, err := ResolveCapability(context.Background(), ModeKeyword, emb, log); err != nil {
		t.Fatalf("ResolveCapability() error: %v", err)
	}
	if len(emb.calls) != 0 {
		t.Errorf("embedder probed %d times in keyword mode", len(emb.calls))
	}
}

func TestCapability_String(t *testing.T) {
	t.Parallel()

	if CapabilityKeyword.String() != "keyword" || CapabilitySemantic.String() != "semantic" {
		t.Errorf("unexpected names: %s, %s", CapabilityKeyword, CapabilitySemantic)
	}
	if got := Capability(9).String(); got != "capability(9)" {
		t.Errorf("Capability(9).String() = %q", got)
	}
}
