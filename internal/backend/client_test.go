package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLatestApproved_Query(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"1","title":"The Stone Guardian","content":"Long ago...","author_name":null,"monument_id":"m1","monuments":{"title":"Hampi","location":"Karnataka","era":"14th century"}}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "anon-key", time.Second)
	st, err := c.LatestApproved(context.Background())
	if err != nil {
		t.Fatalf("LatestApproved: %v", err)
	}

	if got.URL.Path != "/rest/v1/stories" {
		t.Errorf("path = %q", got.URL.Path)
	}
	q := got.URL.Query()
	if q.Get("status") != "eq.approved" || q.Get("order") != "created_at.desc" || q.Get("limit") != "1" {
		t.Errorf("query = %v", q)
	}
	if q.Get("select") != storiesSelect {
		t.Errorf("select = %q", q.Get("select"))
	}
	if got.Header.Get("apikey") != "anon-key" || got.Header.Get("Authorization") != "Bearer anon-key" {
		t.Errorf("auth headers missing: %v", got.Header)
	}

	if st == nil || st.Title != "The Stone Guardian" || st.Body != "Long ago..." {
		t.Fatalf("story = %+v", st)
	}
	if st.AuthorName != nil {
		t.Errorf("author should be absent")
	}
	if st.Monument == nil || st.Monument.Era != "14th century" {
		t.Errorf("monument = %+v", st.Monument)
	}
}

func TestLatestApproved_NoRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	st, err := NewClient(srv.URL, "", time.Second).LatestApproved(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st != nil {
		t.Errorf("expected nil story, got %+v", st)
	}
}

func TestLatestApproved_NullMonument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"1","title":"T","content":"B","monument_id":null,"monuments":null}]`))
	}))
	defer srv.Close()

	st, err := NewClient(srv.URL, "", time.Second).LatestApproved(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Monument != nil || st.MonumentID != nil {
		t.Errorf("reference should be absent: %+v", st)
	}
}

func TestLatestApproved_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid API key","code":"PGRST301"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "bad", time.Second).LatestApproved(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "Invalid API key" {
		t.Errorf("message = %q", err.Error())
	}
	var be *Error
	if !errors.As(err, &be) || be.Status != http.StatusUnauthorized {
		t.Errorf("expected 401 status error, got %v", err)
	}
}

func TestLatestApproved_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "", time.Second).LatestApproved(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, "k", time.Second).Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
