package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientSubmitSendsTokenAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/jobs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(SubmitResponse{Accepted: true, JobID: req.JobID, Status: "processing"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "secret")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Submit(context.Background(), SubmitRequest{JobID: "lesson-1", Kind: "dialogue-audio", Payload: json.RawMessage(`{"content":"x"}`)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !resp.Accepted || resp.JobID != "lesson-1" {
		t.Fatalf("unexpected response %#v", resp)
	}
}

func TestClientSurfacesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "job_id is required"})
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, "")
	_, err := client.Jobs(context.Background(), "failed")
	if err == nil || !strings.Contains(err.Error(), "job_id is required") {
		t.Fatalf("expected error body in %v", err)
	}
}

func TestNilClientIsUnavailable(t *testing.T) {
	client, err := NewClient("", "")
	if err != nil || client != nil {
		t.Fatalf("expected nil client, got %v %v", client, err)
	}
	if _, err := client.Status(context.Background()); !IsUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestUnreachableDaemonIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().String()
	srv.Close()

	client, _ := NewClient(addr, "")
	if _, err := client.Status(context.Background()); !IsUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
