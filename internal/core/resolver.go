package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mikey-austin/tsmusic/internal/ports"
	"github.com/mikey-austin/tsmusic/pkg/tsm"
)

// Resolver resolves selectors to node presence.
type Resolver struct {
	Presence ports.Broker
	Config   Config
}

// ResolveBot resolves a bot selector using config defaults.
func (r Resolver) ResolveBot(ctx context.Context, selector string) (tsm.Presence, error) {
	if selector == "" {
		selector = r.Config.Defaults.Bot
	}

	presence, err := r.Presence.ListPresence(ctx)
	if err != nil {
		return tsm.Presence{}, WrapError(ExitRuntime, "list presence", err)
	}

	bots := filterPresence(presence, tsm.PresenceKindMusic)
	if selector == "" {
		if len(bots) == 1 {
			return bots[0], nil
		}
		if len(bots) == 0 {
			return tsm.Presence{}, &CLIError{Code: ExitNotFound, Msg: "no music bot online"}
		}
		return tsm.Presence{}, &CLIError{Code: ExitUsage, Msg: "bot selector required: " + suggestionList(bots)}
	}
	return resolveSelector(selector, bots, r.Config.Aliases)
}

func filterPresence(presence []tsm.Presence, kind string) []tsm.Presence {
	out := make([]tsm.Presence, 0, len(presence))
	for _, p := range presence {
		if p.Kind == kind && p.Online {
			out = append(out, p)
		}
	}
	return out
}

func resolveSelector(selector string, presence []tsm.Presence, aliases map[string]string) (tsm.Presence, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return tsm.Presence{}, &CLIError{Code: ExitUsage, Msg: "selector required"}
	}
	if alias, ok := aliases[selector]; ok {
		selector = alias
	}

	for _, p := range presence {
		if p.NodeID == selector {
			return p, nil
		}
	}

	matches := make([]tsm.Presence, 0)
	for _, p := range presence {
		if strings.EqualFold(p.Name, selector) || strings.EqualFold(p.NodeID, selector) {
			matches = append(matches, p)
		}
	}

	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) == 0 {
		return tsm.Presence{}, &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("no match for %q", selector)}
	}
	return tsm.Presence{}, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("ambiguous selector %q: %s", selector, suggestionList(matches))}
}

func suggestionList(matches []tsm.Presence) string {
	names := make([]string, 0, len(matches))
	for _, p := range matches {
		names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.NodeID))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
