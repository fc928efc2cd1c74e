package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGatewayClientUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload" {
			t.Fatalf("expected /upload, got %s", r.URL.Path)
		}
		var req uploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Title != "Title" || req.Author != "author" {
			t.Fatalf("unexpected request %+v", req)
		}
		if err := json.NewEncoder(w).Encode(uploadResponse{CID: "bafyup", URL: "https://gw/bafyup"}); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewGatewayClient(server.URL)
	artifact, err := client.Upload(context.Background(), "Title", "content", "author")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if artifact.CID != "bafyup" {
		t.Fatalf("expected cid bafyup, got %q", artifact.CID)
	}
}

func TestGatewayClientUploadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewGatewayClient(server.URL)
	if _, err := client.Upload(context.Background(), "Title", "content", "author"); err == nil {
		t.Fatal("expected error for unavailable gateway")
	}
}
