package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

func TestDirectory_CachesWithinTTL(t *testing.T) {
	gw := NewMockClient()
	gw.Team = []models.Member{{ID: "m1"}}
	dir := NewDirectory(gw, "dev", time.Minute)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	dir.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := dir.Members(ctx, false); err != nil {
			t.Fatal(err)
		}
	}
	if n := gw.CallCount("ListTeam"); n != 1 {
		t.Errorf("ListTeam calls = %d, want 1", n)
	}

	now = now.Add(time.Minute)
	dir.Members(ctx, false)
	if n := gw.CallCount("ListTeam"); n != 2 {
		t.Errorf("ListTeam calls after expiry = %d, want 2", n)
	}

	dir.Members(ctx, true)
	if n := gw.CallCount("ListTeam"); n != 3 {
		t.Errorf("ListTeam calls after force = %d, want 3", n)
	}
}

func TestDirectory_ErrorIsNotCached(t *testing.T) {
	gw := NewMockClient()
	gw.Err = errors.New("down")
	dir := NewDirectory(gw, "dev", 0)
	ctx := context.Background()

	if _, err := dir.Labels(ctx, false); err == nil {
		t.Fatal("expected error")
	}
	gw.Err = nil
	gw.Labels = []models.Label{{Name: "bot"}}
	labels, err := dir.Labels(ctx, false)
	if err != nil || len(labels) != 1 {
		t.Errorf("labels = %v, %v", labels, err)
	}
}

func TestDirectory_Refresh(t *testing.T) {
	gw := NewMockClient()
	dir := NewDirectory(gw, "dev", 0)
	if err := dir.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gw.CallCount("ListTeam") != 1 || gw.CallCount("ListLabels") != 1 {
		t.Errorf("calls = %v", gw.Calls)
	}
}
