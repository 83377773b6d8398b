package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OCAP2/datamaps/internal/config"
	"github.com/OCAP2/datamaps/internal/dismissal"
	"github.com/OCAP2/datamaps/pkg/core"
)

type dismissResult struct {
	Map       string   `json:"map" yaml:"map"`
	Target    string   `json:"target,omitempty" yaml:"target,omitempty"`
	Scope     string   `json:"scope,omitempty" yaml:"scope,omitempty"`
	Dismissed bool     `json:"dismissed" yaml:"dismissed"`
	Local     []string `json:"local" yaml:"local"`
	Global    []string `json:"global" yaml:"global"`
}

func (r dismissResult) renderText(w io.Writer) error {
	if r.Target != "" {
		state := "restored"
		if r.Dismissed {
			state = "dismissed"
		}
		fmt.Fprintf(w, "%s %s in %s scope\n", r.Target, state, r.Scope)
	}
	fmt.Fprintf(w, "local (%s): %s\n", dismissal.LocalKey(r.Map), strings.Join(r.Local, ", "))
	fmt.Fprintf(w, "global (%s): %s\n", dismissal.GlobalKey(), strings.Join(r.Global, ", "))
	return nil
}

func newDismissCommand() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "dismiss <map-definition> [marker-id | #group]",
		Short: "Toggle a collected marker or group in the configured store",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && !list {
				return fmt.Errorf("a marker id or #group is required unless --list is given")
			}
			mapCfg, err := config.LoadMapConfig(args[0])
			if err != nil {
				return err
			}
			backend, err := openStorage()
			if err != nil {
				return err
			}
			defer closeStorage(backend)

			scopes, err := dismissal.OpenScopes(backend, mapCfg.ID)
			if err != nil {
				return err
			}

			result := dismissResult{Map: mapCfg.ID}
			if len(args) == 2 {
				if err := toggle(mapCfg, scopes, args[1], &result); err != nil {
					return err
				}
			}
			result.Local = scopes.Local.Dismissed()
			result.Global = scopes.Global.Dismissed()
			return render(cmd.OutOrStdout(), outputFormat, result)
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "Only list dismissed entries")
	return cmd
}

// toggle flips target: "#group" for group collectibles, otherwise a marker
// identity of an individually collected group
func toggle(mapCfg *core.MapConfig, scopes *dismissal.Scopes, target string, result *dismissResult) error {
	id, isGroup := strings.CutPrefix(target, "#")
	mode := core.CollectibleIndividual
	if isGroup {
		gc, ok := mapCfg.Groups[id]
		if !ok {
			return fmt.Errorf("unknown group %q", id)
		}
		mode, _ = core.ParseCollectibleMode(gc.Collectible)
		if mode == core.CollectibleNone || mode == core.CollectibleIndividual {
			return fmt.Errorf("group %q is not collected as a whole (%s)", id, mode)
		}
	}

	store := scopes.ForGroup(mode)
	state, err := store.ToggleDismissal(id, isGroup)
	if err != nil {
		return err
	}
	Logger.Info("Toggled dismissal", "target", target, "dismissed", state, "key", store.Key())

	result.Target = target
	result.Dismissed = state
	result.Scope = "local"
	if mode == core.CollectibleGlobalGroup {
		result.Scope = "global"
	}
	return nil
}
