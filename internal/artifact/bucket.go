package artifact

import (
	"fmt"
	"strings"

	"github.com/BadgerOps/jarsync/internal/manifest"
	"github.com/BadgerOps/jarsync/internal/safety"
)

// FallbackBucket receives artifacts no rule matches.
const FallbackBucket = "others"

// Rule assigns artifacts whose id or group contains one of Keywords to Bucket.
type Rule struct {
	Bucket   string
	Keywords []string
}

// DefaultRules is the bucket layout used when none is configured.
func DefaultRules() []Rule {
	return []Rule{
		{Bucket: "javafx", Keywords: []string{"javafx"}},
		{Bucket: "rag", Keywords: []string{"lucene", "onnxruntime", "javaparser", "djl", "tokenizers"}},
		{Bucket: "text-component", Keywords: []string{"richtextfx", "flowless", "reactfx", "undofx", "wellbehaved"}},
	}
}

// Classifier maps coordinates to buckets using an ordered rule table.
type Classifier struct {
	rules []Rule
}

// NewClassifier validates rules. Order matters: the first matching rule wins.
func NewClassifier(rules []Rule) (*Classifier, error) {
	c := &Classifier{}
	for i, r := range rules {
		if err := validBucketName(r.Bucket); err != nil {
			return nil, fmt.Errorf("bucket rule %d: %w", i, err)
		}
		if len(r.Keywords) == 0 {
			return nil, fmt.Errorf("bucket rule %d (%s): no keywords", i, r.Bucket)
		}
		kw := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kw = append(kw, k)
			}
		}
		c.rules = append(c.rules, Rule{Bucket: r.Bucket, Keywords: kw})
	}
	return c, nil
}

// Bucket returns the bucket for coord. Artifact id and group id are matched
// case-insensitively by substring.
func (c *Classifier) Bucket(coord manifest.Coordinate) string {
	artifact := strings.ToLower(coord.ArtifactID)
	group := strings.ToLower(coord.GroupID)
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(artifact, k) || strings.Contains(group, k) {
				return r.Bucket
			}
		}
	}
	return FallbackBucket
}

// Buckets lists every bucket name in rule order, ending with the fallback.
func (c *Classifier) Buckets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range c.rules {
		if !seen[r.Bucket] {
			seen[r.Bucket] = true
			out = append(out, r.Bucket)
		}
	}
	if !seen[FallbackBucket] {
		out = append(out, FallbackBucket)
	}
	return out
}

func validBucketName(name string) error {
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("bucket name %q must be a single path element", name)
	}
	if _, err := safety.CleanRelativePath(name); err != nil {
		return fmt.Errorf("bucket name %q: %w", name, err)
	}
	return nil
}
