package campaign

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerifyBacklinksReportsPerArticle(t *testing.T) {
	linked := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p><a href="https://coffee.example.com">best espresso</a></p></body></html>`))
	}))
	defer linked.Close()
	bare := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>no links here</p></body></html>`))
	}))
	defer bare.Close()
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer dead.Close()

	o, st, _, _ := testFixture(t, 1, &stubGenerator{}, fastConfig())
	c := &Campaign{
		ID:        "c-v",
		Owner:     "ops",
		Status:    StatusCompleted,
		TargetURL: "https://coffee.example.com",
		Articles: []Article{
			{Platform: "p1", URL: linked.URL},
			{Platform: "p1", URL: bare.URL},
			{Platform: "p1", URL: dead.URL},
		},
	}
	if err := st.SaveCampaign(c); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	results, err := o.VerifyBacklinks(context.Background(), "c-v")
	if err != nil {
		t.Fatalf("VerifyBacklinks failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if !results[0].Found || results[0].AnchorText != "best espresso" {
		t.Errorf("linked article = %+v", results[0])
	}
	if results[1].Found || results[1].Err != nil {
		t.Errorf("bare article = %+v", results[1])
	}
	if results[2].Err == nil {
		t.Errorf("dead article = %+v, want fetch error", results[2])
	}
}

func TestVerifyBacklinksUnknownCampaign(t *testing.T) {
	o, _, _, _ := testFixture(t, 1, &stubGenerator{}, fastConfig())
	if _, err := o.VerifyBacklinks(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown campaign")
	}
}

func TestVerifyBacklinksStopsOnCancel(t *testing.T) {
	o, st, _, _ := testFixture(t, 1, &stubGenerator{}, fastConfig())
	c := &Campaign{
		ID:        "c-v2",
		Owner:     "ops",
		Status:    StatusCompleted,
		TargetURL: "https://coffee.example.com",
		Articles:  []Article{{Platform: "p1", URL: "https://unreachable.invalid/post"}},
	}
	if err := st.SaveCampaign(c); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := o.VerifyBacklinks(ctx, "c-v2")
	if err == nil {
		t.Fatal("expected context error")
	}
	if len(results) != 0 {
		t.Errorf("results = %d with cancelled context", len(results))
	}
}
