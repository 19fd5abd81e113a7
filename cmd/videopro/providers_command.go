package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/anujsonawane60/my-video-pro-app/internal/config"
)

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the built-in providers and which ones the config selects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			reg := config.NewRegistry()
			ctx.register(reg, &providerFactory{log: newLogger(ctx.stderr, cfg.Server.LogLevel)})
			fmt.Fprintln(ctx.stdout, renderTable(
				[]string{"Kind", "Name", "Use"},
				providerRows(cfg, reg),
				nil,
			))
			return nil
		},
	}
}

// providerRows lists every registered provider with its role in cfg:
// "primary", "fallback N" or empty.
func providerRows(cfg *config.Config, reg *config.Registry) [][]string {
	roles := map[string]map[string]string{
		"stt":      chainRoles(cfg.Providers.STT),
		"tts":      chainRoles(cfg.Providers.TTS),
		"vad":      {},
		"segments": {},
	}
	vadName := cfg.Providers.VAD.Name
	if vadName == "" {
		vadName = "webrtc"
	}
	roles["vad"][vadName] = "selected"
	if name := cfg.Providers.Segments.Name; name != "" {
		roles["segments"][name] = "selected"
	}

	var rows [][]string
	for _, kind := range []string{"stt", "tts", "vad", "segments"} {
		for _, name := range reg.Names(kind) {
			rows = append(rows, []string{kind, name, roles[kind][name]})
		}
	}
	return rows
}

func chainRoles(chain []config.ProviderEntry) map[string]string {
	out := make(map[string]string, len(chain))
	for i, e := range chain {
		if i == 0 {
			out[e.Name] = "primary"
			continue
		}
		out[e.Name] = "fallback " + strconv.Itoa(i)
	}
	return out
}
