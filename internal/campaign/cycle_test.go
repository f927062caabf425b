package campaign

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"linkforge/internal/platform"
	"linkforge/internal/publisher"
	"linkforge/internal/retry"
)

func TestCampaignCompletesAcrossRotation(t *testing.T) {
	o, _, reg, statics := testFixture(t, 4, &stubGenerator{}, fastConfig())
	c := createAndStart(t, o)

	got := waitForStatus(t, o, c.ID, StatusCompleted)

	if got.Progress.CompletedPlatforms != 4 || got.Progress.TotalPlatforms != 4 {
		t.Errorf("progress = %+v", got.Progress)
	}
	if got.LinksBuilt != 4 || len(got.Articles) != 4 {
		t.Errorf("links_built=%d articles=%d, want 4/4", got.LinksBuilt, len(got.Articles))
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	if got.CurrentPlatform != "" {
		t.Errorf("current_platform = %q after completion", got.CurrentPlatform)
	}
	if len(got.PlatformsUsed) != 4 {
		t.Errorf("platforms_used = %v", got.PlatformsUsed)
	}

	// One article per platform, and every platform healthier for it.
	for id, s := range statics {
		if n := len(s.Published()); n != 1 {
			t.Errorf("platform %s received %d articles, want 1", id, n)
		}
		target, _ := reg.Get(id)
		if target.TotalSuccesses != 1 || target.Health != platform.Healthy {
			t.Errorf("platform %s health = %+v", id, target)
		}
	}

	// Completed campaigns schedule nothing further.
	time.Sleep(50 * time.Millisecond)
	if o.Scheduler().Pending(c.ID) {
		t.Error("completed campaign still has a pending cycle")
	}
}

func TestLinksBuiltMatchesArticleLog(t *testing.T) {
	o, st, _, _ := testFixture(t, 2, &stubGenerator{}, fastConfig())
	c := createAndStart(t, o)
	got := waitForStatus(t, o, c.ID, StatusCompleted)

	if got.LinksBuilt != len(got.Articles) {
		t.Errorf("links_built=%d != %d articles", got.LinksBuilt, len(got.Articles))
	}
	stored, err := st.GetCampaign(c.ID)
	if err != nil {
		t.Fatalf("store read failed: %v", err)
	}
	if stored.LinksBuilt != len(stored.Articles) {
		t.Errorf("persisted links_built=%d != %d articles", stored.LinksBuilt, len(stored.Articles))
	}
}

func TestArticleRecordsCarryAnchorAndPlatform(t *testing.T) {
	o, _, _, _ := testFixture(t, 1, &stubGenerator{content: "Espresso Basics\n\nBody text."}, fastConfig())
	c := createAndStart(t, o)
	got := waitForStatus(t, o, c.ID, StatusCompleted)

	if len(got.Articles) != 1 {
		t.Fatalf("articles = %d", len(got.Articles))
	}
	a := got.Articles[0]
	if a.Title != "Espresso Basics" {
		t.Errorf("title = %q", a.Title)
	}
	if a.Platform != "p1" || a.URL == "" {
		t.Errorf("article = %+v", a)
	}
	if a.AnchorText != "best espresso" {
		t.Errorf("anchor = %q", a.AnchorText)
	}
	if a.PublishedAt.IsZero() || a.WordCount == 0 {
		t.Errorf("metadata unset: %+v", a)
	}
}

func TestAutoPauseWhenRotationExhausted(t *testing.T) {
	o, _, reg, statics := testFixture(t, 1, &stubGenerator{}, fastConfig())
	statics["p1"].FailWith(&publisher.PlatformError{
		Platform: "p1", Kind: retry.KindNetwork, Err: errors.New("connection refused"),
	})

	c := createAndStart(t, o)
	waitForStatus(t, o, c.ID, StatusPaused)

	target, _ := reg.Get("p1")
	if target.Health != platform.Unhealthy {
		t.Errorf("health = %s, want unhealthy", target.Health)
	}
	if target.NextRetryAfter == nil {
		t.Fatal("cooldown not armed")
	}
	until := time.Until(*target.NextRetryAfter)
	if until < 25*time.Minute || until > 31*time.Minute {
		t.Errorf("cooldown window = %v, want about 30m", until)
	}
	if target.ConsecutiveFailures < 3 {
		t.Errorf("consecutive_failures = %d", target.ConsecutiveFailures)
	}

	got, _ := o.Get(c.ID)
	if got.LinksBuilt != 0 {
		t.Errorf("links_built = %d on a fully failed rotation", got.LinksBuilt)
	}
}

func TestPersistenceFailureKeepsMemoryAuthoritative(t *testing.T) {
	o, st, _, _ := testFixture(t, 1, &stubGenerator{}, fastConfig())
	c, err := o.Create("ops", []string{"espresso"}, []string{"anchor"}, "https://coffee.example.com")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// The store goes down after creation; cycles must keep going.
	st.failSaves = errors.New("store offline")
	if err := o.Start(c.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	got := waitForStatus(t, o, c.ID, StatusCompleted)
	if got.LinksBuilt != 1 {
		t.Errorf("links_built = %d", got.LinksBuilt)
	}

	// The store still holds the pre-outage draft.
	stored, err := st.GetCampaign(c.ID)
	if err != nil {
		t.Fatalf("store read failed: %v", err)
	}
	if stored.Status != StatusDraft {
		t.Errorf("stored status = %s, want the stale draft", stored.Status)
	}
}

func TestRunCycleIgnoresInactiveCampaign(t *testing.T) {
	o, _, _, statics := testFixture(t, 1, &stubGenerator{}, fastConfig())
	c, err := o.Create("ops", []string{"k"}, []string{"a"}, "https://x.example.com")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	o.RunCycle(context.Background(), c.ID)

	if n := len(statics["p1"].Published()); n != 0 {
		t.Errorf("draft campaign published %d articles", n)
	}
	got, _ := o.Get(c.ID)
	if got.Status != StatusDraft {
		t.Errorf("status = %s", got.Status)
	}
}

func TestSplitArticle(t *testing.T) {
	cases := []struct {
		in, title, bodyStart string
	}{
		{"My Title\n\nFirst para.", "My Title", "First para."},
		{"# My Title\nBody", "My Title", "Body"},
		{"\n\n  ## Spaced Title\n\nBody here", "Spaced Title", "Body here"},
		{"", "", ""},
	}
	for _, tc := range cases {
		title, body := splitArticle(tc.in)
		if title != tc.title {
			t.Errorf("splitArticle(%q) title = %q, want %q", tc.in, title, tc.title)
		}
		if tc.bodyStart != "" && !strings.HasPrefix(body, tc.bodyStart) {
			t.Errorf("splitArticle(%q) body = %q", tc.in, body)
		}
	}
}
