package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gitaiops/internal"
)

const testSecret = "shared-secret"

func testHandler(t *testing.T, queue *internal.Queue) *Handler {
	t.Helper()
	return NewHandler(testSecret, 1<<20, queue, testNormalizer(t), nil)
}

func postWebhook(t *testing.T, h *Handler, kindHeader, payload, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gitlab", bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	if kindHeader != "" {
		req.Header.Set(KindHeader, kindHeader)
	}
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerAcceptsAndOrdersEvents(t *testing.T) {
	queue := internal.NewQueue(10)
	h := testHandler(t, queue)

	push := `{"object_kind":"push","project_id":42,"commits":[{"message":"bump deps"}]}`
	rec := postWebhook(t, h, "Push Hook", push, Sign([]byte(push), testSecret))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("push status = %d, body %s", rec.Code, rec.Body)
	}
	var accepted struct {
		Accepted bool   `json:"accepted"`
		EventID  string `json:"event_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !accepted.Accepted || !strings.HasPrefix(accepted.EventID, "push_") {
		t.Fatalf("response = %+v", accepted)
	}

	pipeline := `{"object_kind":"pipeline","project":{"id":42},"object_attributes":{"id":7,"status":"failed"}}`
	rec = postWebhook(t, h, "Pipeline Hook", pipeline, Sign([]byte(pipeline), testSecret))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("pipeline status = %d, body %s", rec.Code, rec.Body)
	}

	// The failed pipeline arrived second but outranks the push.
	first, err := queue.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if first.Kind != internal.KindPipeline {
		t.Fatalf("first dequeued kind = %s, want pipeline", first.Kind)
	}
	second, err := queue.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if second.Kind != internal.KindPush {
		t.Fatalf("second dequeued kind = %s, want push", second.Kind)
	}
}

func TestHandlerRejectsBadSignature(t *testing.T) {
	queue := internal.NewQueue(10)
	h := testHandler(t, queue)

	payload := `{"object_kind":"push","project_id":42,"commits":[]}`

	t.Run("missing header", func(t *testing.T) {
		rec := postWebhook(t, h, "Push Hook", payload, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})
	t.Run("signature for different body", func(t *testing.T) {
		rec := postWebhook(t, h, "Push Hook", payload, Sign([]byte(`{"other":true}`), testSecret))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})
	t.Run("signature with wrong secret", func(t *testing.T) {
		rec := postWebhook(t, h, "Push Hook", payload, Sign([]byte(payload), "other-secret"))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	if queue.Depth() != 0 {
		t.Fatalf("rejected requests reached the queue, depth = %d", queue.Depth())
	}
}

func TestHandlerRejectsUnusableBody(t *testing.T) {
	queue := internal.NewQueue(10)
	h := testHandler(t, queue)

	t.Run("unsupported kind", func(t *testing.T) {
		payload := `{"object_kind":"wiki_page"}`
		rec := postWebhook(t, h, "Wiki Page Hook", payload, Sign([]byte(payload), testSecret))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
	t.Run("missing project", func(t *testing.T) {
		payload := `{"object_kind":"pipeline","object_attributes":{"id":7}}`
		rec := postWebhook(t, h, "Pipeline Hook", payload, Sign([]byte(payload), testSecret))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
	t.Run("malformed json", func(t *testing.T) {
		payload := `{"object_kind":`
		rec := postWebhook(t, h, "Pipeline Hook", payload, Sign([]byte(payload), testSecret))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	if queue.Depth() != 0 {
		t.Fatalf("rejected requests reached the queue, depth = %d", queue.Depth())
	}
}

func TestHandlerQueueFull(t *testing.T) {
	queue := internal.NewQueue(1)
	h := testHandler(t, queue)

	payload := `{"object_kind":"push","project_id":42,"commits":[]}`
	sig := Sign([]byte(payload), testSecret)

	if rec := postWebhook(t, h, "Push Hook", payload, sig); rec.Code != http.StatusAccepted {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := postWebhook(t, h, "Push Hook", payload, sig)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("429 missing Retry-After header")
	}
}

func TestHandlerQueueClosed(t *testing.T) {
	queue := internal.NewQueue(10)
	queue.Shutdown()
	h := testHandler(t, queue)

	payload := `{"object_kind":"push","project_id":42,"commits":[]}`
	rec := postWebhook(t, h, "Push Hook", payload, Sign([]byte(payload), testSecret))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	h := testHandler(t, internal.NewQueue(10))
	req := httptest.NewRequest(http.MethodGet, "/webhooks/gitlab", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHandlerBodyLimit(t *testing.T) {
	h := NewHandler(testSecret, 64, internal.NewQueue(10), testNormalizer(t), nil)

	payload := `{"object_kind":"push","project_id":42,"padding":"` + strings.Repeat("x", 200) + `"}`
	rec := postWebhook(t, h, "Push Hook", payload, Sign([]byte(payload), testSecret))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for oversized body", rec.Code)
	}
}
