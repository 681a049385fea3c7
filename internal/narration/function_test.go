package narration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func functionServer(t *testing.T, status int, body string, seen *Request) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/functions/v1/text-to-speech" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFunctionClient_Success(t *testing.T) {
	var seen Request
	srv := functionServer(t, http.StatusOK, `{"text":"A long time ago in the ruins of Hampi..."}`, &seen)

	c := NewFunctionClient(srv.URL, "text-to-speech", "key", time.Second)
	res, err := c.Synthesize(context.Background(), Request{Text: "Long ago...", Language: English})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.Text != "A long time ago in the ruins of Hampi..." {
		t.Errorf("text = %q", res.Text)
	}
	if seen.Text != "Long ago..." || seen.Language != English {
		t.Errorf("request = %+v", seen)
	}
}

func TestFunctionClient_EmptyTextPassedThrough(t *testing.T) {
	var seen Request
	srv := functionServer(t, http.StatusOK, `{"text":"x"}`, &seen)

	c := NewFunctionClient(srv.URL, "text-to-speech", "", time.Second)
	if _, err := c.Synthesize(context.Background(), Request{Text: "", Language: Kannada}); err != nil {
		t.Fatal(err)
	}
	if seen.Text != "" || seen.Language != Kannada {
		t.Errorf("request = %+v", seen)
	}
}

func TestFunctionClient_NoPayload(t *testing.T) {
	srv := functionServer(t, http.StatusOK, `{"audioContent":"..."}`, nil)
	res, err := NewFunctionClient(srv.URL, "text-to-speech", "", time.Second).
		Synthesize(context.Background(), Request{Text: "t", Language: English})
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "" {
		t.Errorf("text = %q, want empty", res.Text)
	}
}

func TestFunctionClient_ErrorBody(t *testing.T) {
	srv := functionServer(t, http.StatusTooManyRequests, `{"error":"rate limited"}`, nil)
	_, err := NewFunctionClient(srv.URL, "text-to-speech", "", time.Second).
		Synthesize(context.Background(), Request{Text: "t", Language: English})
	if err == nil || err.Error() != "rate limited" {
		t.Fatalf("err = %v, want rate limited", err)
	}
}

func TestFunctionClient_ErrorWithoutBody(t *testing.T) {
	srv := functionServer(t, http.StatusBadGateway, ``, nil)
	_, err := NewFunctionClient(srv.URL, "text-to-speech", "", time.Second).
		Synthesize(context.Background(), Request{Text: "t", Language: English})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestFunctionClient_Malformed(t *testing.T) {
	srv := functionServer(t, http.StatusOK, `{"text": 42}`, nil)
	_, err := NewFunctionClient(srv.URL, "text-to-speech", "", time.Second).
		Synthesize(context.Background(), Request{Text: "t", Language: English})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestFunctionClient_ErrorFieldOn200(t *testing.T) {
	srv := functionServer(t, http.StatusOK, `{"error":"voice unavailable"}`, nil)
	_, err := NewFunctionClient(srv.URL, "text-to-speech", "", time.Second).
		Synthesize(context.Background(), Request{Text: "t", Language: English})
	if err == nil || err.Error() != "voice unavailable" {
		t.Fatalf("err = %v", err)
	}
}
