package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"converse/pkg/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewGeminiClient("test-key", "chat-model", "image-model")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.baseURL = srv.URL
	return client
}

func TestGenerateChatSendsHistoryAndInstruction(t *testing.T) {
	var captured generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "chat-model") {
			t.Errorf("path = %q, want chat model", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "Bonjour!"}}}},
			},
		})
	})

	history := []domain.Turn{
		{Role: domain.RoleUser, Parts: "Hello"},
		{Role: domain.RoleModel, Parts: "Hi there"},
	}
	reply, err := client.GenerateChat(context.Background(), history, "Say hello in French", "You are a French tutor")
	if err != nil {
		t.Fatalf("generate chat: %v", err)
	}
	if reply != "Bonjour!" {
		t.Fatalf("reply = %q", reply)
	}

	if len(captured.Contents) != 3 {
		t.Fatalf("contents = %d, want 3", len(captured.Contents))
	}
	if captured.Contents[2].Role != domain.RoleUser || captured.Contents[2].Parts[0].Text != "Say hello in French" {
		t.Fatalf("last content = %+v", captured.Contents[2])
	}
	if captured.SystemInstruction == nil || captured.SystemInstruction.Parts[0].Text != "You are a French tutor" {
		t.Fatal("system instruction missing")
	}
	if len(captured.Tools) != 1 {
		t.Fatalf("tools = %d, want search tool", len(captured.Tools))
	}
}

func TestGenerateChatSurfacesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	})
	_, err := client.GenerateChat(context.Background(), nil, "hello", "")
	if err == nil {
		t.Fatal("expected error for API failure")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("error = %v, want quota message", err)
	}
}

func TestStylizeImageDecodesInlineData(t *testing.T) {
	stylized := []byte{0x89, 'P', 'N', 'G'}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "image-model") {
			t.Errorf("path = %q, want image model", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{
					{"inlineData": map[string]any{
						"mimeType": "image/png",
						"data":     base64.StdEncoding.EncodeToString(stylized),
					}},
				}}},
			},
		})
	})

	out, err := client.StylizeImage(context.Background(), "anime style", []byte{1, 2, 3}, "image/jpeg")
	if err != nil {
		t.Fatalf("stylize image: %v", err)
	}
	if string(out) != string(stylized) {
		t.Fatalf("output = %v", out)
	}
}

func TestStylizeImageWithoutInlineData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "cannot do that"}}}},
			},
		})
	})
	if _, err := client.StylizeImage(context.Background(), "anime style", []byte{1}, "image/png"); err == nil {
		t.Fatal("expected error when no image returned")
	}
}
