package source

import (
	"context"
	"strings"
	"testing"

	"github.com/zukijourney/archive-browser/internal/archive"
	"github.com/zukijourney/archive-browser/internal/config"
)

type stubSource struct{ kind string }

func (s stubSource) Kind() string { return s.kind }

func (s stubSource) List(context.Context, archive.Locator) ([]archive.Entry, error) {
	return []archive.Entry{}, nil
}

func replaceRegistry(t *testing.T) {
	t.Helper()
	prev := globalRegistry
	globalRegistry = newRegistry()
	t.Cleanup(func() { globalRegistry = prev })
}

func TestBuiltinSourcesRegistered(t *testing.T) {
	types := Types()
	joined := strings.Join(types, ",")
	if joined != "github,local" {
		t.Fatalf("unexpected builtin types: %v", types)
	}
	if _, ok := Resolve("  GitHub "); !ok {
		t.Fatalf("resolve should be case-insensitive")
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	replaceRegistry(t)
	reg := Registration{Type: "stub", New: func(Options) (Source, error) { return stubSource{kind: "stub"}, nil }}
	if err := Register(reg); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if err := Register(reg); err == nil {
		t.Fatalf("duplicate register should fail")
	}
	if err := Register(Registration{Type: "nofactory"}); err == nil {
		t.Fatalf("missing factory should fail")
	}
	if err := Register(Registration{Type: " ", New: reg.New}); err == nil {
		t.Fatalf("blank type should fail")
	}
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	replaceRegistry(t)
	reg := Registration{Type: "stub", New: func(Options) (Source, error) { return stubSource{kind: "stub"}, nil }}
	MustRegister(reg)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustRegister(reg)
}

func TestNewSelectsRegisteredFactory(t *testing.T) {
	replaceRegistry(t)
	MustRegister(Registration{Type: "stub", New: func(Options) (Source, error) { return stubSource{kind: "stub"}, nil }})

	src, err := New(Options{Config: config.SourceConfig{Type: "STUB"}})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if src.Kind() != "stub" {
		t.Fatalf("unexpected source kind %s", src.Kind())
	}
	if _, err := New(Options{Config: config.SourceConfig{Type: "svn"}}); err == nil {
		t.Fatalf("unknown type should fail")
	}
}
