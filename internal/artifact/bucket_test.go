package artifact

import (
	"reflect"
	"testing"

	"github.com/BadgerOps/jarsync/internal/manifest"
)

func TestDefaultClassifier(t *testing.T) {
	c, err := NewClassifier(DefaultRules())
	if err != nil {
		t.Fatalf("NewClassifier() error: %v", err)
	}

	tests := []struct {
		group, artifact string
		want            string
	}{
		{"org.openjfx", "javafx-controls", "javafx"},
		{"org.apache.lucene", "lucene-core", "rag"},
		{"org.apache.lucene", "lucene-analysis-common", "rag"},
		{"com.microsoft.onnxruntime", "onnxruntime", "rag"},
		{"ai.djl.huggingface", "tokenizers", "rag"},
		{"com.github.javaparser", "javaparser-core", "rag"},
		{"org.fxmisc.richtext", "richtextfx", "text-component"},
		{"org.fxmisc.flowless", "flowless", "text-component"},
		{"org.xerial", "sqlite-jdbc", "others"},
		{"ai.djl", "api", "rag"}, // group match
		{"org.openjfx", "JavaFX-Base", "javafx"},
	}

	for _, tt := range tests {
		t.Run(tt.artifact, func(t *testing.T) {
			got := c.Bucket(manifest.Coordinate{GroupID: tt.group, ArtifactID: tt.artifact})
			if got != tt.want {
				t.Errorf("Bucket(%s:%s) = %q, want %q", tt.group, tt.artifact, got, tt.want)
			}
		})
	}
}

func TestClassifierFirstMatchWins(t *testing.T) {
	c, err := NewClassifier([]Rule{
		{Bucket: "first", Keywords: []string{"core"}},
		{Bucket: "second", Keywords: []string{"lucene"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Bucket(manifest.Coordinate{GroupID: "org.apache.lucene", ArtifactID: "lucene-core"}); got != "first" {
		t.Errorf("expected first matching rule to win, got %q", got)
	}
}

func TestClassifierBuckets(t *testing.T) {
	c, err := NewClassifier(DefaultRules())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"javafx", "rag", "text-component", "others"}
	if got := c.Buckets(); !reflect.DeepEqual(got, want) {
		t.Errorf("Buckets() = %v, want %v", got, want)
	}
}

func TestNewClassifierRejectsBadRules(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"traversal", Rule{Bucket: "..", Keywords: []string{"x"}}},
		{"nested", Rule{Bucket: "a/b", Keywords: []string{"x"}}},
		{"empty name", Rule{Bucket: "", Keywords: []string{"x"}}},
		{"no keywords", Rule{Bucket: "ok"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClassifier([]Rule{tt.rule}); err == nil {
				t.Error("expected error")
			}
		})
	}
}
