package provider

import (
	"context"
	"fmt"
	"testing"

	"github.com/registrykit/zonepub/internal/dns/common/log"
	"github.com/registrykit/zonepub/internal/dns/config"
	"github.com/registrykit/zonepub/internal/dns/domain"
)

type stubClient struct{}

func (stubClient) List(context.Context, string, string) ([]domain.ResourceRecord, error) {
	return nil, nil
}

func (stubClient) Change(context.Context, string, domain.ZoneDiff) error {
	return nil
}

func resetFactories() {
	factoriesMu.Lock()
	factories = make(map[string]Factory)
	factoriesMu.Unlock()
}

func TestRegisterAndBuild(t *testing.T) {
	resetFactories()
	defer resetFactories()

	Register("stub", func(cfg config.WriterConfig, _ log.Logger) (Client, error) {
		if cfg.Kind != "stub" {
			return nil, fmt.Errorf("unexpected kind %q", cfg.Kind)
		}
		return stubClient{}, nil
	})

	client, err := Build(config.WriterConfig{Kind: "stub"}, log.NewNoopLogger())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if client == nil {
		t.Fatal("Build returned nil client")
	}
}

func TestBuildUnknownKind(t *testing.T) {
	resetFactories()
	defer resetFactories()

	_, err := Build(config.WriterConfig{Kind: "unheard-of"}, log.NewNoopLogger())
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	resetFactories()
	defer resetFactories()

	factory := func(config.WriterConfig, log.Logger) (Client, error) { return stubClient{}, nil }
	Register("dup", factory)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	Register("dup", factory)
}

func TestRegisterNilPanics(t *testing.T) {
	resetFactories()
	defer resetFactories()

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on nil factory")
		}
	}()
	Register("nil", nil)
}

func TestKindsSorted(t *testing.T) {
	resetFactories()
	defer resetFactories()

	factory := func(config.WriterConfig, log.Logger) (Client, error) { return stubClient{}, nil }
	Register("zeta", factory)
	Register("alpha", factory)

	kinds := Kinds()
	if len(kinds) != 2 || kinds[0] != "alpha" || kinds[1] != "zeta" {
		t.Errorf("expected sorted kinds [alpha zeta], got %v", kinds)
	}
}
