package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// fakeIngester records what the pipeline hands to the library.
type fakeIngester struct {
	err   error
	names []string
	texts []string
}

func (f *fakeIngester) Ingest(_ context.Context, name, content string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.names = append(f.names, name)
	f.texts = append(f.texts, content)
	return 1, nil
}

func TestIngest_LocalFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(path, []byte("# Notes\nsome content"), 0o600); err != nil {
		t.Fatal(err)
	}

	lib := &fakeIngester{}
	p, err := NewPipeline(lib, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	var msgs []string
	err = p.Ingest(context.Background(), []Source{{Location: path}}, func(m string) { msgs = append(msgs, m) })
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if len(lib.names) != 1 || lib.names[0] != "notes.md" {
		t.Errorf("derived name = %v, want [notes.md]", lib.names)
	}
	if lib.texts[0] != "# Notes\nsome content" {
		t.Errorf("content = %q", lib.texts[0])
	}
	if len(msgs) == 0 {
		t.Error("expected progress messages")
	}
}

func TestIngest_URL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Error("expected a User-Agent header")
		}
		w.Write([]byte("page body"))
	}))
	defer srv.Close()

	lib := &fakeIngester{}
	p, _ := NewPipeline(lib, nil)

	err := p.Ingest(context.Background(), []Source{{Location: srv.URL + "/docs/page"}}, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(lib.texts) != 1 || lib.texts[0] != "page body" {
		t.Errorf("content = %v", lib.texts)
	}
}

func TestIngest_ExplicitNameOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "raw.txt")
	os.WriteFile(path, []byte("x"), 0o600)

	lib := &fakeIngester{}
	p, _ := NewPipeline(lib, nil)

	if err := p.Ingest(context.Background(), []Source{{Location: path, Name: "handbook"}}, nil); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if lib.names[0] != "handbook" {
		t.Errorf("name = %q, want handbook", lib.names[0])
	}
}

func TestIngest_FetchFailureStopsPipeline(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	lib := &fakeIngester{}
	p, _ := NewPipeline(lib, nil)

	err := p.Ingest(context.Background(), []Source{{Location: srv.URL}}, nil)
	if err == nil {
		t.Fatal("expected error on fetch failure")
	}
	if len(lib.names) != 0 {
		t.Error("nothing should be indexed when the fetch fails")
	}
}

func TestIngest_IndexingFailurePropagates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	os.WriteFile(path, []byte("x"), 0o600)

	p, _ := NewPipeline(&fakeIngester{err: errors.New("embedder down")}, nil)

	if err := p.Ingest(context.Background(), []Source{{Location: path}}, nil); err == nil {
		t.Fatal("expected error when indexing fails")
	}
}

func TestDeriveName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		location string
		want     string
	}{
		{"/tmp/docs/readme.md", "readme.md"},
		{"https://example.com/docs/guide/", "example.com/docs/guide"},
		{"https://example.com", "example.com"},
	}
	for _, tc := range cases {
		if got := deriveName(tc.location); got != tc.want {
			t.Errorf("deriveName(%q) = %q, want %q", tc.location, got, tc.want)
		}
	}
}
