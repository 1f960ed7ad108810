// Package amassgraph parses amass relationship output lines of the form
// "subject (Type) --> predicate --> object (Type)" into a node/edge graph.
package amassgraph

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var triplePattern = regexp.MustCompile(`^\s*(.*?)\s*-->\s*(.*?)\s*-->\s*(.*?)\s*$`)

// Triple is one parsed relationship line. Types are empty when the line carries none.
type Triple struct {
	Subject     string `json:"subject"`
	SubjectType string `json:"subject_type,omitempty"`
	Predicate   string `json:"predicate"`
	Object      string `json:"object"`
	ObjectType  string `json:"object_type,omitempty"`
}

type Node struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type Edge struct {
	Source    Node   `json:"source"`
	Predicate string `json:"predicate"`
	Target    Node   `json:"target"`
}

// Graph holds deduplicated nodes in first-seen order and every edge.
type Graph struct {
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
	Skipped int    `json:"skipped"`
}

// ParseLine extracts a triple. ok is false for lines without two arrows or with an
// empty subject, predicate or object.
func ParseLine(line string) (Triple, bool) {
	m := triplePattern.FindStringSubmatch(line)
	if m == nil {
		return Triple{}, false
	}

	subject, subjectType := splitType(m[1])
	object, objectType := splitType(m[3])
	t := Triple{
		Subject:     subject,
		SubjectType: subjectType,
		Predicate:   m[2],
		Object:      object,
		ObjectType:  objectType,
	}
	if t.Subject == "" || t.Predicate == "" || t.Object == "" {
		return Triple{}, false
	}
	return t, true
}

func splitType(s string) (string, string) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, ")") {
		if i := strings.LastIndex(s, "("); i >= 0 {
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1 : len(s)-1])
		}
	}
	return s, ""
}

// Parse reads every line of r. Blank lines are ignored; other non-matching lines are
// counted in Skipped.
func Parse(r io.Reader) (Graph, error) {
	g := Graph{Nodes: []Node{}, Edges: []Edge{}}
	seen := make(map[Node]struct{})
	add := func(n Node) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		g.Nodes = append(g.Nodes, n)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		t, ok := ParseLine(line)
		if !ok {
			g.Skipped++
			continue
		}
		src := Node{Name: t.Subject, Type: t.SubjectType}
		dst := Node{Name: t.Object, Type: t.ObjectType}
		add(src)
		add(dst)
		g.Edges = append(g.Edges, Edge{Source: src, Predicate: t.Predicate, Target: dst})
	}
	if err := scanner.Err(); err != nil {
		return g, fmt.Errorf("failed to read amass output: %w", err)
	}
	return g, nil
}

// FQDNs returns the names of every node typed FQDN, in first-seen order.
func (g Graph) FQDNs() []string {
	var out []string
	for _, n := range g.Nodes {
		if n.Type == "FQDN" {
			out = append(out, n.Name)
		}
	}
	return out
}
