package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/sandorn/xthttp/internal/testutil"
	"github.com/sandorn/xthttp/pkg/response"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Retry = fastRetryConfig()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	return c
}

func TestNewTaskNormalizesMethod(t *testing.T) {
	task := NewTask(0, "get", "https://example.com/")
	if task.Method != "GET" {
		t.Errorf("Method = %q, want GET", task.Method)
	}
}

func TestConfigureValidation(t *testing.T) {
	c := newTestClient(t)

	tests := []struct {
		name    string
		method  string
		url     string
		wantErr error
	}{
		{"valid get", "GET", "https://example.com/", nil},
		{"valid patch", "PATCH", "http://example.com/x", nil},
		{"unsupported method", "BREW", "https://example.com/", ErrUnsupportedMethod},
		{"bad scheme", "GET", "ftp://example.com/", ErrInvalidURL},
		{"no host", "GET", "https:///path", ErrInvalidURL},
		{"not a url", "GET", "://broken", ErrInvalidURL},
		{"empty url", "GET", "", ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTask(0, tt.method, tt.url).Configure(c)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Configure() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Configure() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStartRequiresConfigure(t *testing.T) {
	task := NewTask(0, "GET", "https://example.com/")

	if _, err := task.Start(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Start() = %v, want ErrNotConfigured", err)
	}
	if _, err := task.MultiStart(context.Background(), http.DefaultClient); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("MultiStart() = %v, want ErrNotConfigured", err)
	}
}

func TestTaskStart(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.HandleHTML("/page", "<html><body><h1>title</h1></body></html>")

	c := newTestClient(t)
	task := NewTask(7, "GET", origin.URL()+"/page")
	if err := task.Configure(c); err != nil {
		t.Fatalf("Configure() = %v", err)
	}

	resp, err := task.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() = %v", err)
	}

	if resp.StatusCode() != http.StatusOK {
		t.Errorf("StatusCode() = %d, want 200", resp.StatusCode())
	}
	if resp.Index() != 7 {
		t.Errorf("Index() = %d, want 7", resp.Index())
	}
	if resp.Elapsed() <= 0 {
		t.Error("Elapsed() = 0, want positive duration")
	}
	if got := resp.CSSFirst("h1"); got != "title" {
		t.Errorf("CSSFirst(h1) = %q, want title", got)
	}
}

func TestTaskRetriesServerErrors(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.HandleFlaky("/flaky", 2, http.StatusBadGateway, "recovered")

	c := newTestClient(t)
	task := NewTask(0, "GET", origin.URL()+"/flaky")
	if err := task.Configure(c); err != nil {
		t.Fatalf("Configure() = %v", err)
	}

	resp, err := task.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() = %v, want recovery on third attempt", err)
	}
	if resp.Text() != "recovered" {
		t.Errorf("Text() = %q, want recovered", resp.Text())
	}
	if got := origin.RequestCount("/flaky"); got != 3 {
		t.Errorf("request count = %d, want 3", got)
	}
}

func TestTaskClientErrorIsTerminal(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.HandleStatus("/missing", http.StatusNotFound, "gone")

	c := newTestClient(t)
	task := NewTask(0, "GET", origin.URL()+"/missing")
	if err := task.Configure(c); err != nil {
		t.Fatalf("Configure() = %v", err)
	}

	resp, err := task.Start(context.Background())
	if err == nil {
		t.Fatalf("Start() = %v, want terminal failure for 404", resp)
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Start() error = %T, want *RequestError", err)
	}
	if reqErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", reqErr.StatusCode)
	}
	if reqErr.ErrorClass != ErrorClassClient {
		t.Errorf("ErrorClass = %s, want client", reqErr.ErrorClass)
	}
	if got := origin.RequestCount("/missing"); got != 1 {
		t.Errorf("request count = %d, want 1 (no retry)", got)
	}
}

func TestTaskExhaustsRetries(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.HandleStatus("/down", http.StatusServiceUnavailable, "")

	c := newTestClient(t)
	task := NewTask(0, "GET", origin.URL()+"/down")
	if err := task.Configure(c); err != nil {
		t.Fatalf("Configure() = %v", err)
	}

	_, err := task.Start(context.Background())
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Start() = %v, want ErrRetryExhausted", err)
	}
	if got := origin.RequestCount("/down"); got != 3 {
		t.Errorf("request count = %d, want 3", got)
	}
}

func TestTaskReplaysBodyOnRetry(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()

	var bodies []string
	var failed bool
	origin.Handle("/submit", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		if !failed {
			failed = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("accepted"))
	})

	c := newTestClient(t)
	task := NewTask(0, "POST", origin.URL()+"/submit")
	task.Body = []byte(`{"k":"v"}`)
	if err := task.Configure(c); err != nil {
		t.Fatalf("Configure() = %v", err)
	}

	resp, err := task.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if resp.Text() != "accepted" {
		t.Errorf("Text() = %q, want accepted", resp.Text())
	}
	if len(bodies) != 2 {
		t.Fatalf("attempts = %d, want 2", len(bodies))
	}
	for i, body := range bodies {
		if body != `{"k":"v"}` {
			t.Errorf("attempt %d body = %q, want full payload replay", i+1, body)
		}
	}
}

func TestTaskSendsCookies(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()

	var got string
	origin.Handle("/echo", func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie("session"); err == nil {
			got = cookie.Value
		}
		w.Write([]byte("ok"))
	})

	c := newTestClient(t)
	task := NewTask(0, "GET", origin.URL()+"/echo")
	task.Cookies["session"] = "abc123"
	if err := task.Configure(c); err != nil {
		t.Fatalf("Configure() = %v", err)
	}

	if _, err := task.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if got != "abc123" {
		t.Errorf("session cookie = %q, want abc123", got)
	}
}

func TestTaskTransformReplacesResult(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.HandleHTML("/page", `<html><body><h1>hello</h1></body></html>`)

	c := newTestClient(t)
	task := NewTask(0, "GET", origin.URL()+"/page")
	task.Transform = func(resp *response.Response) *response.Response {
		if resp.CSSFirst("h1") != "hello" {
			t.Errorf("CSSFirst(h1) = %q inside transform", resp.CSSFirst("h1"))
		}
		return response.New(response.RawResponse{
			StatusCode: resp.StatusCode(),
			Body:       []byte(resp.CSSFirst("h1")),
			URL:        resp.URL(),
		}, response.WithIndex(resp.Index()))
	}
	if err := task.Configure(c); err != nil {
		t.Fatalf("Configure() = %v", err)
	}

	resp, err := task.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if resp.Text() != "hello" {
		t.Errorf("transformed Text() = %q, want hello", resp.Text())
	}
}

func TestTaskAppliesDefaultHeaders(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()

	var gotUA, gotCustom string
	origin.Handle("/echo", func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Custom")
		w.Write([]byte("ok"))
	})

	c := newTestClient(t)
	task := NewTask(0, "GET", origin.URL()+"/echo")
	task.Header.Set("X-Custom", "yes")
	if err := task.Configure(c); err != nil {
		t.Fatalf("Configure() = %v", err)
	}

	if _, err := task.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if gotUA == "" {
		t.Error("User-Agent not sent")
	}
	if gotCustom != "yes" {
		t.Errorf("X-Custom = %q, want yes", gotCustom)
	}
}
