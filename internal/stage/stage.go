// Package stage writes the document tree that gets published: a profile,
// one post and an index listing the posts.
package stage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio"
)

// TimeLayout is ISO-8601 in UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z"

const (
	ProfileFile = "profile.json"
	IndexFile   = "status_index.json"
	PostsDir    = "posts"
	FirstPost   = "post0.json"
)

// Input holds the operator-entered strings.
type Input struct {
	Name string
	Bio  string
	Post string
}

type Profile struct {
	Name    string `json:"name"`
	Bio     string `json:"bio"`
	Created string `json:"created"`
}

type Post struct {
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
}

type StatusIndex struct {
	Posts []string `json:"posts"`
}

// Tree describes a staged tree on disk.
type Tree struct {
	Dir     string
	Profile Profile
	Posts   []Post
	Index   StatusIndex
}

// Build returns the documents for in without touching disk.
func Build(dir string, in Input, now time.Time) Tree {
	ts := now.UTC().Format(TimeLayout)
	return Tree{
		Dir:     dir,
		Profile: Profile{Name: in.Name, Bio: in.Bio, Created: ts},
		Posts:   []Post{{Timestamp: ts, Content: in.Post}},
		Index:   StatusIndex{Posts: []string{"/" + PostsDir + "/" + FirstPost}},
	}
}

// Write replaces whatever is at dir with the tree built from in.
func Write(dir string, in Input, now time.Time) (Tree, error) {
	tree := Build(dir, in, now)

	if err := os.RemoveAll(dir); err != nil {
		return Tree{}, fmt.Errorf("clear staged tree: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, PostsDir), 0o755); err != nil {
		return Tree{}, fmt.Errorf("create staged tree: %w", err)
	}

	docs := []struct {
		path string
		v    any
	}{
		{filepath.Join(dir, ProfileFile), tree.Profile},
		{filepath.Join(dir, PostsDir, FirstPost), tree.Posts[0]},
		{filepath.Join(dir, IndexFile), tree.Index},
	}
	for _, doc := range docs {
		if err := writeJSON(doc.path, doc.v); err != nil {
			return Tree{}, err
		}
	}
	return tree, nil
}

// Writer stages trees under a fixed directory.
type Writer struct {
	Dir string
}

func (w Writer) Stage(in Input, now time.Time) (Tree, error) {
	return Write(w.Dir, in, now)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
