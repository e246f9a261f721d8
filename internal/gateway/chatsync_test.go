package gateway

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

func constant(v string) func() string { return func() string { return v } }

func TestApplyLabels(t *testing.T) {
	tests := []struct {
		name        string
		current     []string
		remove, add []string
		want        []string
		wantChanged bool
	}{
		{"add missing", []string{"vip"}, nil, []string{"bot"}, []string{"vip", "bot"}, true},
		{"already present", []string{"bot"}, nil, []string{"bot"}, []string{"bot"}, false},
		{"swap on assignment", []string{"vip", "bot"}, []string{"bot"}, []string{"from-bot"}, []string{"vip", "from-bot"}, true},
		{"remove only", []string{"bot"}, []string{"bot"}, nil, []string{}, true},
		{"nothing to do", nil, []string{"bot"}, nil, []string{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := ApplyLabels(tt.current, tt.remove, tt.add)
			if !reflect.DeepEqual(got, tt.want) || changed != tt.wantChanged {
				t.Errorf("ApplyLabels = %v, %v; want %v, %v", got, changed, tt.want, tt.wantChanged)
			}
		})
	}
}

func TestMetadataEntries(t *testing.T) {
	contact := models.Contact{Metadata: []models.MetadataEntry{{Key: "source", Value: "bot"}}}
	rules := []MetadataRule{
		{Key: "source", Value: constant("bot")},
		{Key: "empty", Value: constant("")},
		{Key: "", Value: constant("x")},
		{Key: strings.Repeat("k", 40), Value: constant(strings.Repeat("v", 1200))},
		{Key: "bot_start", Value: constant("2024-03-01T10:00:00Z")},
	}
	entries := MetadataEntries(contact, rules)
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if len(entries[0].Key) != 30 || len(entries[0].Value) != 1000 {
		t.Errorf("truncation failed: key %d value %d", len(entries[0].Key), len(entries[0].Value))
	}
	if entries[1].Key != "bot_start" {
		t.Errorf("entries[1] = %+v", entries[1])
	}
}

func TestSyncLabelsAndMetadata(t *testing.T) {
	gw := NewMockClient()
	chat := models.Chat{ID: "c1", Labels: []string{"bot"}}
	ctx := context.Background()

	if err := SyncLabels(ctx, gw, "dev", chat, nil, []string{"bot"}); err != nil {
		t.Fatal(err)
	}
	if gw.CallCount("UpdateChatLabels") != 0 {
		t.Error("unchanged labels should not be written")
	}
	if err := SyncMetadata(ctx, gw, "dev", chat, []MetadataRule{{Key: "k", Value: constant("v")}}); err != nil {
		t.Fatal(err)
	}
	if got := gw.Metadata["c1"]; len(got) != 1 || got[0].Key != "k" {
		t.Errorf("metadata = %+v", got)
	}
}
