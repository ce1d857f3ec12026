package core

import (
	"context"
	"testing"

	"github.com/mikey-austin/tsmusic/pkg/tsm"
)

func TestResolverSingleBotDefault(t *testing.T) {
	presence := []tsm.Presence{
		{NodeID: "lounge", Kind: tsm.PresenceKindMusic, Name: "Lounge Bot", Online: true},
		{NodeID: "gone", Kind: tsm.PresenceKindMusic, Name: "Gone", Online: false},
	}
	resolver := Resolver{Presence: &stubBroker{presence: presence}}
	got, err := resolver.ResolveBot(context.Background(), "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.NodeID != "lounge" {
		t.Fatalf("expected only online bot")
	}
}

func TestResolverAlias(t *testing.T) {
	presence := []tsm.Presence{{NodeID: "bot-1", Kind: tsm.PresenceKindMusic, Name: "Lounge Bot", Online: true}}
	resolver := Resolver{
		Presence: &stubBroker{presence: presence},
		Config:   Config{Aliases: map[string]string{"lounge": "bot-1"}},
	}
	got, err := resolver.ResolveBot(context.Background(), "lounge")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.NodeID != "bot-1" {
		t.Fatalf("expected alias resolution")
	}
}

func TestResolverAmbiguousAndMissing(t *testing.T) {
	presence := []tsm.Presence{
		{NodeID: "one", Kind: tsm.PresenceKindMusic, Name: "Lounge Bot", Online: true},
		{NodeID: "two", Kind: tsm.PresenceKindMusic, Name: "Lounge Bot", Online: true},
	}
	resolver := Resolver{Presence: &stubBroker{presence: presence}}
	if _, err := resolver.ResolveBot(context.Background(), "Lounge Bot"); ExitCode(err) != ExitUsage {
		t.Fatalf("expected ambiguous usage error, got %v", err)
	}
	if _, err := resolver.ResolveBot(context.Background(), ""); ExitCode(err) != ExitUsage {
		t.Fatalf("expected selector required, got %v", err)
	}
	if _, err := resolver.ResolveBot(context.Background(), "nope"); ExitCode(err) != ExitNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	empty := Resolver{Presence: &stubBroker{}}
	if _, err := empty.ResolveBot(context.Background(), ""); ExitCode(err) != ExitNotFound {
		t.Fatalf("expected no bot online, got %v", err)
	}
}
