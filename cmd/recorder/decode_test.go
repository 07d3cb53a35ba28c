package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dgnsrekt/pucks-replay/internal/registry"
	"github.com/dgnsrekt/pucks-replay/internal/wire"
)

func TestDecodeHex_PositionUpdate(t *testing.T) {
	reg, err := registry.FromEntries([]registry.EntityInfo{{ID: 300, Name: "Bob", Team: 1}})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	err = decodeHex(&buf, "06 0000c03f 00002040 01 ac02 00004040 00008040", 42, reg)
	if err != nil {
		t.Fatalf("decodeHex failed: %v", err)
	}

	var out struct {
		Code  int    `json:"code"`
		Kind  string `json:"kind"`
		Event struct {
			Sample struct {
				T       int64 `json:"t"`
				Players []struct {
					ID   uint64  `json:"id"`
					Name string  `json:"name"`
					X    float64 `json:"x"`
				} `json:"players"`
			} `json:"sample"`
		} `json:"event"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if out.Code != 6 || out.Kind != "position_update" {
		t.Errorf("unexpected header: %+v", out)
	}
	if out.Event.Sample.T != 42 {
		t.Errorf("expected t=42, got %d", out.Event.Sample.T)
	}
	if len(out.Event.Sample.Players) != 1 || out.Event.Sample.Players[0].Name != "Bob" {
		t.Errorf("unexpected players: %+v", out.Event.Sample.Players)
	}
}

func TestDecodeHex_Boundary(t *testing.T) {
	var buf bytes.Buffer
	if err := decodeHex(&buf, "0x0b", 0, registry.New()); err != nil {
		t.Fatalf("decodeHex failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"session_boundary"`) || !strings.Contains(buf.String(), `"goal"`) {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestDecodeHex_Errors(t *testing.T) {
	var buf bytes.Buffer
	if err := decodeHex(&buf, "zz", 0, registry.New()); err == nil {
		t.Error("expected error for invalid hex")
	}

	err := decodeHex(&buf, "06 0000c03f", 0, registry.New())
	if !errors.Is(err, wire.ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}
