package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/pucks-replay/internal/frame"
	"github.com/dgnsrekt/pucks-replay/internal/registry"
)

// decodedMessage is the JSON printed by the decode command.
type decodedMessage struct {
	Code  byte   `json:"code"`
	Kind  string `json:"kind"`
	Event any    `json:"event"`
}

func decodeCmd(a *app) *cobra.Command {
	var offsetMs int64

	cmd := &cobra.Command{
		Use:   "decode HEX",
		Short: "Decode one raw upstream message",
		Long: `Decode a single upstream message given as hex and print the result as JSON.
Player ids are resolved against the configured roster.

Examples:
  # Position update: ball (1.5, 2.5), one player id 300 at (3, 4)
  recorder decode "06 0000c03f 00002040 01 ac02 00004040 00008040"

  # Goal
  recorder decode 0b`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entities, err := registry.FromEntries(a.cfg.Roster)
			if err != nil {
				return fmt.Errorf("loading roster: %w", err)
			}
			return decodeHex(cmd.OutOrStdout(), strings.Join(args, ""), offsetMs, entities)
		},
	}

	cmd.Flags().Int64Var(&offsetMs, "offset-ms", 0, "clock offset stamped on position samples")

	return cmd
}

func decodeHex(w io.Writer, input string, offsetMs int64, entities registry.Lookuper) error {
	cleaned := strings.NewReplacer(" ", "", "\n", "", "\t", "", ":", "").Replace(input)
	cleaned = strings.TrimPrefix(strings.TrimPrefix(cleaned, "0x"), "0X")

	message, err := hex.DecodeString(cleaned)
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}

	ev, err := frame.DecodeMessage(message, offsetMs, entities)
	if err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}

	out := decodedMessage{Code: ev.Code(), Event: ev}
	switch e := ev.(type) {
	case frame.PositionUpdate:
		out.Kind = "position_update"
	case frame.SessionBoundary:
		out.Kind = "session_boundary"
		out.Event = map[string]string{"reason": e.Reason.String()}
	case frame.Unhandled:
		out.Kind = "unhandled"
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
