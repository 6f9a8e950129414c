package vitals

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetect_ThresholdFiltering(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req detectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ImageRef != "file:///captures/img-3.jpg" {
			t.Errorf("imageRef = %q", req.ImageRef)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"detections": []map[string]any{
				{"condition": "jaundice", "probability": 0.82},
				{"condition": "pallor", "probability": 0.40},
				{"condition": "cyanosis", "probability": 0.91},
			},
		})
	}))
	defer srv.Close()

	d := New(srv.URL)
	got, err := d.Detect(context.Background(), "file:///captures/img-3.jpg")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("detections = %v, want 2 above threshold", got)
	}
	if got["jaundice"] != "High Probability detected (82%)" {
		t.Errorf("jaundice note = %q", got["jaundice"])
	}
	if _, ok := got["pallor"]; ok {
		t.Error("pallor at 0.40 should be filtered out")
	}
}

func TestDetect_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := New(srv.URL)
	if _, err := d.Detect(context.Background(), "ref"); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestNop(t *testing.T) {
	t.Parallel()

	got, err := Nop{}.Detect(context.Background(), "ref")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}
