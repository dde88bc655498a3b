package models_test

import (
	"encoding/json"
	"strings"
	"testing"

	"chatsino/internal/models"
)

func TestPermissionOrdering(t *testing.T) {
	cases := []struct {
		have, need models.PermissionLevel
		want       bool
	}{
		{models.PermissionVisitor, models.PermissionUser, false},
		{models.PermissionUser, models.PermissionUser, true},
		{models.PermissionAdminLimited, models.PermissionUser, true},
		{models.PermissionAdminLimited, models.PermissionAdminUnlimited, false},
		{models.PermissionAdminUnlimited, models.PermissionVisitor, true},
		{"root", models.PermissionVisitor, false},
	}

	for _, tc := range cases {
		if got := tc.have.Satisfies(tc.need); got != tc.want {
			t.Errorf("%s satisfies %s = %v, want %v", tc.have, tc.need, got, tc.want)
		}
	}

	if _, err := models.ParsePermissionLevel("admin:limited"); err != nil {
		t.Errorf("ParsePermissionLevel failed: %v", err)
	}
	if _, err := models.ParsePermissionLevel("superuser"); err == nil {
		t.Error("unknown permission level should fail to parse")
	}
}

func TestTargetDecoding(t *testing.T) {
	var args models.PlaceRouletteBetArgs
	if err := json.Unmarshal([]byte(`{"kind":"straight-up","which":17,"wager":5}`), &args); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if n, ok := args.Which.Int(); !ok || n != 17 {
		t.Errorf("expected numeric target 17, got %q", args.Which)
	}

	if err := json.Unmarshal([]byte(`{"kind":"red-black","which":"red","wager":5}`), &args); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if args.Which != "red" {
		t.Errorf("expected target red, got %q", args.Which)
	}
	if _, ok := args.Which.Int(); ok {
		t.Error("red should not be numeric")
	}

	out, err := json.Marshal(models.Target("3"))
	if err != nil || string(out) != "3" {
		t.Errorf("numeric target should marshal as a number, got %s (%v)", out, err)
	}
}

func TestResponseOutbound(t *testing.T) {
	failed := models.Response{To: 1, Kind: "startBlackjackGame", Error: "nope", Data: json.RawMessage(`{}`)}
	out, _ := json.Marshal(failed.Outbound())
	if strings.Contains(string(out), "data") {
		t.Errorf("error response must not carry data: %s", out)
	}

	ok := models.Response{To: 1, Kind: "listChatrooms", Data: json.RawMessage(`["Lobby"]`)}
	out, _ = json.Marshal(ok.Outbound())
	if string(out) != `{"kind":"listChatrooms","data":["Lobby"]}` {
		t.Errorf("unexpected outbound frame: %s", out)
	}
}

func TestIDGenerators(t *testing.T) {
	if models.GenerateConnectionID() == models.GenerateConnectionID() {
		t.Error("connection ids should be unique")
	}
	if !strings.HasPrefix(models.GenerateTransactionID(), "tx_") {
		t.Error("transaction ids should carry the tx_ prefix")
	}
}
