// Package manifest reads Maven project manifests (pom.xml) into a property
// table and an ordered list of dependency coordinates.
package manifest

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"golang.org/x/net/html/charset"
)

// Namespace is the POM namespace that properties and dependencies are matched in.
const Namespace = "http://maven.apache.org/POM/4.0.0"

// DefaultScope is assigned to dependencies that declare no scope.
const DefaultScope = "compile"

var (
	// ErrManifestNotFound indicates the manifest path does not exist.
	ErrManifestNotFound = errors.New("manifest not found")
	// ErrManifestParse indicates the manifest is not well-formed XML.
	ErrManifestParse = errors.New("manifest parse error")
)

// Properties is the immutable property table of a manifest.
type Properties struct {
	values map[string]string
}

// NewProperties copies values into a property table.
func NewProperties(values map[string]string) Properties {
	p := Properties{values: make(map[string]string, len(values))}
	for k, v := range values {
		p.values[k] = v
	}
	return p
}

// Lookup returns the value of a property and whether it is defined.
func (p Properties) Lookup(name string) (string, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Len returns the number of defined properties.
func (p Properties) Len() int { return len(p.values) }

// Names returns the property names in sorted order.
func (p Properties) Names() []string {
	names := make([]string, 0, len(p.values))
	for k := range p.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Coordinate identifies a single declared dependency.
type Coordinate struct {
	GroupID    string
	ArtifactID string
	Version    string // resolved version, or the declared text if resolution failed
	Declared   string // version text exactly as written in the manifest
	Scope      string
}

// Key returns "groupId:artifactId".
func (c Coordinate) Key() string {
	return c.GroupID + ":" + c.ArtifactID
}

// String returns "groupId:artifactId:version".
func (c Coordinate) String() string {
	return c.Key() + ":" + c.Version
}

// GroupPath returns the group id with dots replaced by slashes, as used in
// repository layouts.
func (c Coordinate) GroupPath() string {
	return strings.ReplaceAll(c.GroupID, ".", "/")
}

// Resolved reports whether Version is a literal that can be compared or used
// to build a URL.
func (c Coordinate) Resolved() bool {
	return c.Version != "" && !strings.Contains(c.Version, "${")
}

// Document is a parsed manifest.
type Document struct {
	Properties   Properties
	Dependencies []Coordinate
}

// Unresolved returns the dependencies whose version is still a placeholder,
// in declaration order.
func (d *Document) Unresolved() []Coordinate {
	var out []Coordinate
	for _, c := range d.Dependencies {
		if !c.Resolved() {
			out = append(out, c)
		}
	}
	return out
}

// Parse reads and resolves the manifest at path.
func Parse(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	doc, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Decode parses a manifest from r. Placeholder versions of the exact form
// ${name} are replaced from the property table; undefined names are left as
// written.
func Decode(r io.Reader) (*Document, error) {
	props, deps, err := scan(r)
	if err != nil {
		return nil, err
	}

	table := Properties{values: props}
	for i := range deps {
		deps[i].Version = Resolve(deps[i].Declared, table)
		if deps[i].Scope == "" {
			deps[i].Scope = DefaultScope
		}
	}

	return &Document{Properties: table, Dependencies: deps}, nil
}

// Resolve substitutes a version of the exact shape ${name}. Anything else is
// returned unchanged, as is a placeholder whose name is undefined.
func Resolve(v string, props Properties) string {
	name, ok := placeholderName(v)
	if !ok {
		return v
	}
	if val, ok := props.Lookup(name); ok {
		return val
	}
	return v
}

func placeholderName(v string) (string, bool) {
	if len(v) < 3 || !strings.HasPrefix(v, "${") || !strings.HasSuffix(v, "}") {
		return "", false
	}
	return v[2 : len(v)-1], true
}

// NewDecoder returns an XML decoder that also accepts documents declaring a
// non-UTF-8 encoding such as ISO-8859-1 or windows-1252.
func NewDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

// scan walks the token stream, collecting project/properties/* and
// project/dependencies/dependency. Elements are matched only in the
// document namespace: the POM namespace, or no namespace at all when the
// root declares none.
func scan(r io.Reader) (map[string]string, []Coordinate, error) {
	dec := NewDecoder(r)

	props := make(map[string]string)
	var deps []Coordinate

	var (
		docNS   string
		path    []string // local names from the root; "" marks a foreign element
		text    strings.Builder
		current *Coordinate
		sawRoot bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrManifestParse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !sawRoot {
				sawRoot = true
				docNS = Namespace
				if t.Name.Space == "" {
					docNS = ""
				}
			}
			name := t.Name.Local
			if t.Name.Space != docNS {
				name = ""
			}
			path = append(path, name)
			text.Reset()

			if matches(path, "", "dependencies", "dependency") {
				current = &Coordinate{}
			}

		case xml.CharData:
			text.Write(t)

		case xml.EndElement:
			value := strings.TrimSpace(text.String())
			text.Reset()

			switch {
			case len(path) == 3 && matches(path[:2], "", "properties") && path[2] != "":
				props[path[2]] = value
			case current != nil && len(path) == 4 && matches(path[:3], "", "dependencies", "dependency"):
				switch path[3] {
				case "groupId":
					current.GroupID = value
				case "artifactId":
					current.ArtifactID = value
				case "version":
					current.Declared = value
				case "scope":
					current.Scope = value
				}
			case current != nil && matches(path, "", "dependencies", "dependency"):
				deps = append(deps, *current)
				current = nil
			}
			path = path[:len(path)-1]
		}
	}

	if !sawRoot {
		return nil, nil, fmt.Errorf("%w: no root element", ErrManifestParse)
	}
	return props, deps, nil
}

// matches reports whether path equals want, where the first element of want
// stands for the root and matches any in-namespace root name.
func matches(path []string, want ...string) bool {
	if len(path) != len(want) {
		return false
	}
	if path[0] == "" {
		return false
	}
	for i := 1; i < len(want); i++ {
		if path[i] != want[i] {
			return false
		}
	}
	return true
}
