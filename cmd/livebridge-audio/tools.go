package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sonacove/livebridge/pkg/tools"
	"github.com/sonacove/livebridge/pkg/wire"
)

// demoRegistry wires up a few local functions so the model can be
// asked to call tools during a conversation.
func demoRegistry(logger *slog.Logger) *tools.Registry {
	registry := tools.NewRegistry()

	mustRegister(registry, tools.Declaration{
		Name:        "get_time",
		Description: "Returns the current date and time, optionally in a named IANA timezone.",
		Parameters: &wire.Schema{
			Type: "object",
			Properties: map[string]*wire.Schema{
				"timezone": {Type: "string", Description: "IANA timezone name, e.g. Europe/Berlin"},
			},
		},
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var in struct {
			Timezone string `json:"timezone"`
		}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
		}
		now := time.Now()
		if in.Timezone != "" {
			loc, err := time.LoadLocation(in.Timezone)
			if err != nil {
				return nil, err
			}
			now = now.In(loc)
		}
		return map[string]any{"time": now.Format(time.RFC1123)}, nil
	})

	mustRegister(registry, tools.Declaration{
		Name:        "set_timer",
		Description: "Sets a local timer that logs when it fires.",
		Parameters: &wire.Schema{
			Type: "object",
			Properties: map[string]*wire.Schema{
				"seconds": {Type: "integer", Description: "Duration in seconds"},
				"label":   {Type: "string", Description: "What the timer is for"},
			},
			Required: []string{"seconds"},
		},
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var in struct {
			Seconds int    `json:"seconds"`
			Label   string `json:"label"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, err
		}
		d := time.Duration(in.Seconds) * time.Second
		time.AfterFunc(d, func() {
			logger.Info("timer fired", "label", in.Label, "after", d)
		})
		return map[string]any{"status": "scheduled", "fires_in_seconds": in.Seconds}, nil
	})

	return registry
}

func mustRegister(r *tools.Registry, decl tools.Declaration, h tools.Handler) {
	if err := r.Register(decl, h); err != nil {
		panic(err)
	}
}
