// Package profile turns raw candidate material into a CandidateProfile.
package profile

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"strings"
	"unicode/utf8"

	"recroai/internal/types"
)

var errTrailingData = stderrors.New("trailing data after JSON value")

var (
	nameKeys       = []string{"name", "fullName", "full_name", "profileName"}
	emailKeys      = []string{"email", "contactEmail", "contact_email"}
	educationKeys  = []string{"education", "educations", "education_text"}
	experienceKeys = []string{"experience", "experiences", "workExperience", "work_experience", "positions", "experience_text"}
	skillsKeys     = []string{"skills", "skillSet", "competencies", "skills_text"}
	summaryKeys    = []string{"summary", "about", "headline", "bio", "summary_text"}
)

// Normalize builds a profile from raw candidate material. It never fails:
// missing fields become "" and unreadable material yields an empty profile.
// Lists and objects are flattened to one text blob per field in document
// order. Free text (a JSON string, a list of strings or plain non-JSON
// text) becomes the summary. The raw material is kept as-is for audit.
func Normalize(raw types.RawCandidate) (p types.CandidateProfile) {
	p = types.CandidateProfile{ID: raw.ID, RawMaterial: raw.Material}
	defer func() {
		if recover() != nil {
			p = types.CandidateProfile{ID: raw.ID, RawMaterial: raw.Material}
		}
	}()

	root, ok := parse(raw.Material)
	if !ok {
		p.SummaryText = clean(freeText(raw.Material))
		return p
	}
	switch root.kind {
	case kindObject:
	case kindArray:
		p.SummaryText = clean(flatten(root, "\n"))
		return p
	default:
		if root.isString {
			p.SummaryText = clean(root.text)
		}
		return p
	}

	p.Name = clean(nameOf(root))
	p.Email = clean(flatten(root.lookup(emailKeys...), ", "))
	p.EducationText = clean(flatten(root.lookup(educationKeys...), "; "))
	p.ExperienceText = clean(flatten(root.lookup(experienceKeys...), "; "))
	p.SkillsText = clean(skillsOf(root.lookup(skillsKeys...)))
	p.SummaryText = clean(flatten(root.lookup(summaryKeys...), " "))
	return p
}

func nameOf(root *node) string {
	if n := root.lookup(nameKeys...); n != nil {
		if s := flatten(n, " "); strings.TrimSpace(s) != "" {
			return s
		}
	}
	first := flatten(root.lookup("firstName", "first_name"), " ")
	last := flatten(root.lookup("lastName", "last_name"), " ")
	return strings.TrimSpace(first + " " + last)
}

// skillsOf prefers the "name" of object entries, so
// [{"name":"Go","level":"expert"}] reads as "Go".
func skillsOf(n *node) string {
	if n == nil || n.kind != kindArray {
		return flatten(n, ", ")
	}
	parts := make([]string, 0, len(n.items))
	for _, item := range n.items {
		if item.kind == kindObject {
			if name := item.lookup("name"); name != nil {
				parts = appendNonEmpty(parts, flatten(name, " "))
				continue
			}
		}
		parts = appendNonEmpty(parts, flatten(item, ", "))
	}
	return strings.Join(parts, ", ")
}

// flatten renders a node as text. Array entries are joined with sep, object
// values with ", ", both in document order.
func flatten(n *node, sep string) string {
	if n == nil {
		return ""
	}
	switch n.kind {
	case kindScalar:
		return strings.TrimSpace(n.text)
	case kindArray:
		parts := make([]string, 0, len(n.items))
		for _, item := range n.items {
			parts = appendNonEmpty(parts, flatten(item, ", "))
		}
		return strings.Join(parts, sep)
	case kindObject:
		parts := make([]string, 0, len(n.values))
		for _, v := range n.values {
			parts = appendNonEmpty(parts, flatten(v, ", "))
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func appendNonEmpty(parts []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		return append(parts, s)
	}
	return parts
}

// freeText returns material that is not JSON at all. Bare JSON literals
// such as null carry no text; anything that starts like a JSON document but
// does not decode is treated as truncated. Invalid UTF-8 is dropped.
func freeText(material []byte) string {
	material = bytes.TrimSpace(material)
	if len(material) == 0 || !utf8.Valid(material) || json.Valid(material) {
		return ""
	}
	switch material[0] {
	case '{', '[', '"':
		return ""
	}
	return string(material)
}

func clean(s string) string {
	return strings.TrimSpace(strings.ToValidUTF8(s, ""))
}

// parse decodes material into an ordered tree. A JSON string holding a JSON
// object is unwrapped once, since ingestion sometimes double-encodes.
func parse(material []byte) (*node, bool) {
	material = bytes.TrimSpace(material)
	if len(material) == 0 {
		return nil, false
	}
	root, err := decode(material)
	if err != nil || root == nil {
		return nil, false
	}
	if root.kind == kindScalar && root.isString {
		inner := bytes.TrimSpace([]byte(root.text))
		if len(inner) > 0 && inner[0] == '{' {
			if unwrapped, err := decode(inner); err == nil && unwrapped != nil {
				return unwrapped, true
			}
		}
	}
	return root, true
}

func decode(data []byte) (*node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	n, err := readNode(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return n, nil
}
