package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Section is one named unit of the document under evaluation
type Section struct {
	Name string `json:"name"` // Canonical section name (e.g., "experiments")
	Text string `json:"text"` // Raw section text
}

// Document is an ordered sequence of named sections.
// Scoring and validation read it; only rewrite operations mutate it.
type Document struct {
	Sections []Section `json:"sections"`
}

// Canonical section names, in document order. Each quality criterion
// evaluates the section of the same name.
var SectionNames = []string{
	"contributions",
	"methodology",
	"experiments",
	"related_work",
	"writing",
	"ethics",
}

// sectionExtensions lists the file extensions LoadDocument will try, in order.
var sectionExtensions = []string{".md", ".tex", ".txt", ".html"}

// NewDocument creates a document with all canonical sections present (empty text).
func NewDocument() *Document {
	doc := &Document{Sections: make([]Section, 0, len(SectionNames))}
	for _, name := range SectionNames {
		doc.Sections = append(doc.Sections, Section{Name: name})
	}
	return doc
}

// Get returns the text of the named section and whether the section exists.
func (d *Document) Get(name string) (string, bool) {
	for _, s := range d.Sections {
		if s.Name == name {
			return s.Text, true
		}
	}
	return "", false
}

// Set replaces the text of the named section. Returns false if no such section.
func (d *Document) Set(name, text string) bool {
	for i := range d.Sections {
		if d.Sections[i].Name == name {
			d.Sections[i].Text = text
			return true
		}
	}
	return false
}

// Names returns section names in document order.
func (d *Document) Names() []string {
	names := make([]string, len(d.Sections))
	for i, s := range d.Sections {
		names[i] = s.Name
	}
	return names
}

// Clone returns a deep copy. Used for best-version snapshots during enhancement.
func (d *Document) Clone() *Document {
	clone := &Document{Sections: make([]Section, len(d.Sections))}
	copy(clone.Sections, d.Sections)
	return clone
}

// LoadDocument reads a document from a directory containing one file per
// canonical section (contributions.md, experiments.tex, ...). Missing section
// files yield empty sections, never an error: an absent section simply scores
// zero. HTML sources are stored raw here; callers strip markup before scoring.
func LoadDocument(dir string) (*Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("document dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document dir: %s is not a directory", dir)
	}

	doc := NewDocument()
	for _, name := range SectionNames {
		for _, ext := range sectionExtensions {
			path := filepath.Join(dir, name+ext)
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			doc.Set(name, strings.TrimSpace(string(data)))
			break
		}
	}
	return doc, nil
}
