package stage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func readJSON[T any](t *testing.T, path string) T {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return v
}

func TestWriteProducesDocuments(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profile")
	now := time.Date(2024, 3, 1, 12, 30, 45, 123_000_000, time.FixedZone("CET", 3600))

	if _, err := Write(dir, Input{Name: "Alice", Bio: "hi", Post: "hello"}, now); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	wantTS := "2024-03-01T11:30:45.123Z"
	profile := readJSON[map[string]string](t, filepath.Join(dir, "profile.json"))
	if diff := cmp.Diff(map[string]string{"name": "Alice", "bio": "hi", "created": wantTS}, profile); diff != "" {
		t.Errorf("profile.json mismatch (-want +got):\n%s", diff)
	}

	post := readJSON[map[string]string](t, filepath.Join(dir, "posts", "post0.json"))
	if diff := cmp.Diff(map[string]string{"timestamp": wantTS, "content": "hello"}, post); diff != "" {
		t.Errorf("post0.json mismatch (-want +got):\n%s", diff)
	}

	index := readJSON[map[string][]string](t, filepath.Join(dir, "status_index.json"))
	if diff := cmp.Diff(map[string][]string{"posts": {"/posts/post0.json"}}, index); diff != "" {
		t.Errorf("status_index.json mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteReplacesPriorTree(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profile")
	if err := os.MkdirAll(filepath.Join(dir, "posts"), 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(dir, "posts", "post7.json")
	if err := os.WriteFile(stale, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Write(dir, Input{Name: "Bob"}, time.Unix(0, 0)); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale post should be removed, stat err = %v", err)
	}
	profile := readJSON[Profile](t, filepath.Join(dir, "profile.json"))
	if profile.Name != "Bob" || profile.Created != "1970-01-01T00:00:00.000Z" {
		t.Errorf("profile = %+v", profile)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	a := Build("/d", Input{Name: "Alice", Bio: "hi", Post: "hello"}, now)
	b := Build("/d", Input{Name: "Alice", Bio: "hi", Post: "hello"}, now)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Build() not deterministic (-a +b):\n%s", diff)
	}
	if len(a.Index.Posts) != 1 || a.Index.Posts[0] != "/posts/post0.json" {
		t.Errorf("index posts = %v", a.Index.Posts)
	}
}
