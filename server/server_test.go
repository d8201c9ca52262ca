package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sweetpotato0/ai-tutor/contrib/vector/inmemory"
	"github.com/sweetpotato0/ai-tutor/hybrid"
	"github.com/sweetpotato0/ai-tutor/llm"
	"github.com/sweetpotato0/ai-tutor/rag/chunking"
	"github.com/sweetpotato0/ai-tutor/rag/embedder"
	"github.com/sweetpotato0/ai-tutor/rag/ingest"
	"github.com/sweetpotato0/ai-tutor/rag/loader"
	"github.com/sweetpotato0/ai-tutor/server"
	"github.com/sweetpotato0/ai-tutor/session"
	sessionstore "github.com/sweetpotato0/ai-tutor/session/store"
	"github.com/sweetpotato0/ai-tutor/websearch"
)

// hashEmbedder produces deterministic vectors from text length.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)%7 + 1), 1}, nil
}

func (h hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (hashEmbedder) Dimension() int { return 2 }

type fakeSearcher struct {
	results []websearch.Result
}

func (f *fakeSearcher) SearchRecent(context.Context, string, int, int) ([]websearch.Result, error) {
	return f.results, nil
}

func (f *fakeSearcher) SearchEducational(context.Context, string, int) ([]websearch.Result, error) {
	return f.results, nil
}

type fakeGenerator struct {
	deltas []string
}

func (f *fakeGenerator) Generate(ctx context.Context, req *llm.Request) (string, error) {
	return strings.Join(f.deltas, ""), nil
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, req *llm.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, d := range f.deltas {
			if ctx.Err() != nil {
				yield("", ctx.Err())
				return
			}
			if !yield(d, nil) {
				return
			}
		}
	}
}

func testPage() string {
	var b strings.Builder
	b.WriteString("<html><head><title>Fractions</title></head><body><article>")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "<p>Paragraph %d explains how a fraction compares two whole quantities in detail.</p>", i)
	}
	b.WriteString("</article></body></html>")
	return b.String()
}

type fixture struct {
	api   *httptest.Server
	pages *httptest.Server
	store *inmemory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testPage())
	}))
	t.Cleanup(pages.Close)

	store := inmemory.New()
	adapter := embedder.NewVectorAdapter(hashEmbedder{})
	retriever := hybrid.NewRetriever(adapter, store, &fakeSearcher{})
	sessions := session.NewManager(session.WithStore(sessionstore.NewMemoryStore()))
	machine := hybrid.NewMachine(hybrid.NewRouter(), retriever, &fakeGenerator{deltas: []string{"Hi ", "there!"}}, sessions)
	orchestrator := ingest.New(
		loader.New(),
		loader.NewWebLoader(pages.Client()),
		chunking.New(chunking.WithMinChars(20)),
		embedder.NewBatcher(hashEmbedder{}),
		store,
	)

	srv := server.New(machine, orchestrator, sessions, hashEmbedder{}, store)
	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)

	return &fixture{api: api, pages: pages, store: store}
}

func (f *fixture) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(f.api.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.api.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestProcessWebpagesAndQuery(t *testing.T) {
	f := newFixture(t)

	resp := f.postJSON(t, "/process-webpages", map[string]any{"urls": []string{f.pages.URL + "/fractions"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest status = %d, want 200", resp.StatusCode)
	}
	var ing struct {
		Status  string `json:"status"`
		Details struct {
			FilesProcessed int      `json:"files_processed"`
			TotalChunks    int      `json:"total_chunks"`
			Filenames      []string `json:"filenames"`
		} `json:"details"`
	}
	decodeJSON(t, resp, &ing)
	if ing.Status != "success" || ing.Details.FilesProcessed != 1 || ing.Details.TotalChunks == 0 {
		t.Fatalf("ingest response = %+v", ing)
	}

	resp = f.postJSON(t, "/query", map[string]any{"query": "what is a fraction"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query status = %d, want 200", resp.StatusCode)
	}
	var hits []struct {
		Content  string            `json:"content"`
		Metadata map[string]string `json:"metadata"`
	}
	decodeJSON(t, resp, &hits)
	if len(hits) == 0 {
		t.Fatal("query returned no hits after ingest")
	}
	if hits[0].Content == "" || hits[0].Metadata["source"] == "" {
		t.Errorf("hit missing content or source metadata: %+v", hits[0])
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", "notes.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fmt.Fprint(fw, "plain text, not a pdf")
	mw.Close()

	resp, err := http.Post(f.api.URL+"/upload-pdf", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /upload-pdf: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 when every file fails", resp.StatusCode)
	}
	var body struct {
		Status  string `json:"status"`
		Details struct {
			FilesProcessed int `json:"files_processed"`
			Files          []struct {
				Source string `json:"source"`
				Error  string `json:"error"`
			} `json:"files"`
		} `json:"details"`
	}
	decodeJSON(t, resp, &body)
	if body.Status != "error" || body.Details.FilesProcessed != 0 {
		t.Errorf("response = %+v, want error status and zero processed", body)
	}
	if len(body.Details.Files) != 1 || body.Details.Files[0].Error == "" {
		t.Errorf("per-file report missing rejection reason: %+v", body.Details.Files)
	}
}

func TestChatGreeting(t *testing.T) {
	f := newFixture(t)

	resp := f.postJSON(t, "/chat", map[string]any{"message": "Hello"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Response  string `json:"response"`
		SessionID string `json:"session_id"`
		Sources   *struct {
			RouteUsed string `json:"route_used"`
		} `json:"sources"`
	}
	decodeJSON(t, resp, &body)
	if body.Response != "Hi there!" {
		t.Errorf("response = %q, want aggregated deltas", body.Response)
	}
	if body.SessionID == "" {
		t.Error("session_id not assigned")
	}
	if body.Sources == nil || body.Sources.RouteUsed != "NONE" {
		t.Errorf("sources = %+v, want route NONE", body.Sources)
	}
}

func TestChatStreamOrdering(t *testing.T) {
	f := newFixture(t)

	resp := f.postJSON(t, "/chat/stream", map[string]any{"message": "Hello"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q, want text/event-stream", ct)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	var types []string
	for _, line := range strings.Split(string(raw), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad frame %q: %v", line, err)
		}
		types = append(types, ev.Type)
	}
	got := strings.Join(types, " ")
	if got != "chunk chunk sources done" {
		t.Errorf("event order = %q, want chunk chunk sources done", got)
	}
}

func TestHistoryAndClear(t *testing.T) {
	f := newFixture(t)

	resp := f.postJSON(t, "/chat", map[string]any{"message": "Hello"})
	var chat struct {
		SessionID string `json:"session_id"`
	}
	decodeJSON(t, resp, &chat)
	if chat.SessionID == "" {
		t.Fatal("no session id assigned")
	}

	resp, err := http.Get(f.api.URL + "/chat/history/" + chat.SessionID)
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d, want 200", resp.StatusCode)
	}
	var hist struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	decodeJSON(t, resp, &hist)
	if len(hist.Messages) != 2 {
		t.Fatalf("history has %d messages, want 2", len(hist.Messages))
	}
	if hist.Messages[0].Role != "user" || hist.Messages[1].Role != "assistant" {
		t.Errorf("history roles = %s,%s", hist.Messages[0].Role, hist.Messages[1].Role)
	}

	req, _ := http.NewRequest(http.MethodDelete, f.api.URL+"/chat/clear/"+chat.SessionID, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE clear: %v", err)
	}
	var cleared struct {
		Cleared bool `json:"cleared"`
	}
	decodeJSON(t, resp, &cleared)
	if !cleared.Cleared {
		t.Error("clear did not report cleared=true")
	}

	req, _ = http.NewRequest(http.MethodDelete, f.api.URL+"/chat/clear/no-such-session", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE clear unknown: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("clear unknown session status = %d, want 404", resp.StatusCode)
	}
}

func TestHistoryUnknownSession(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.api.URL + "/chat/history/no-such-session")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestClearVectorStore(t *testing.T) {
	f := newFixture(t)

	resp := f.postJSON(t, "/process-webpages", map[string]any{"urls": []string{f.pages.URL}})
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, f.api.URL+"/clear-vector-store", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE clear-vector-store: %v", err)
	}
	var body struct {
		Removed int `json:"removed"`
	}
	decodeJSON(t, resp, &body)
	if body.Removed == 0 {
		t.Error("removed = 0, want the ingested chunk count")
	}

	n, err := f.store.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("store still holds %d records after purge", n)
	}
}
