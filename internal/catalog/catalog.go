package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

//go:embed questions.yaml
var defaultData []byte

// QuestionType is the input widget a question is answered with
type QuestionType string

const (
	TypeText        QuestionType = "text"
	TypeTextarea    QuestionType = "textarea"
	TypeNumber      QuestionType = "number"
	TypeSelect      QuestionType = "select"
	TypeMultiselect QuestionType = "multiselect"
	TypePercentage  QuestionType = "percentage"
)

func (t QuestionType) valid() bool {
	switch t {
	case TypeText, TypeTextarea, TypeNumber, TypeSelect, TypeMultiselect, TypePercentage:
		return true
	}
	return false
}

// Validation holds optional numeric bounds and a pattern for a question
type Validation struct {
	Min     *float64 `yaml:"min" json:"min,omitempty"`
	Max     *float64 `yaml:"max" json:"max,omitempty"`
	Pattern string   `yaml:"pattern" json:"pattern,omitempty"`
}

// Question is a single catalog question
type Question struct {
	ID          int          `yaml:"id" json:"id"`
	Text        string       `yaml:"text" json:"text"`
	Type        QuestionType `yaml:"type" json:"type"`
	Placeholder string       `yaml:"placeholder" json:"placeholder,omitempty"`
	Options     []string     `yaml:"options" json:"options,omitempty"`
	Required    bool         `yaml:"required" json:"required,omitempty"`
	Validation  *Validation  `yaml:"validation" json:"validation,omitempty"`
}

// Section is an ordered group of questions
type Section struct {
	ID          int        `yaml:"id" json:"id"`
	Title       string     `yaml:"title" json:"title"`
	Description string     `yaml:"description" json:"description,omitempty"`
	Questions   []Question `yaml:"questions" json:"questions"`
}

type document struct {
	Title       string    `yaml:"title" json:"title"`
	Description string    `yaml:"description" json:"description"`
	Sections    []Section `yaml:"sections" json:"sections"`
}

type questionRef struct {
	section  int
	position int
}

// Catalog is the immutable questionnaire definition. It is loaded once at
// startup and passed to the components that need it.
type Catalog struct {
	doc      document
	index    map[int]questionRef
	sections map[int]int
	total    int
}

// Default returns the questionnaire compiled into the binary
func Default() (*Catalog, error) {
	return Parse(defaultData)
}

// LoadFile reads a questionnaire definition from a YAML file
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Catalog from YAML and checks its structural invariants
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{
		doc:      doc,
		index:    make(map[int]questionRef),
		sections: make(map[int]int),
	}

	lastID := 0
	for si, s := range doc.Sections {
		if _, dup := c.sections[s.ID]; dup {
			return nil, fmt.Errorf("duplicate section id %d", s.ID)
		}
		c.sections[s.ID] = si

		for qi, q := range s.Questions {
			if q.ID <= lastID {
				return nil, fmt.Errorf("question id %d in section %d is not increasing", q.ID, s.ID)
			}
			if !q.Type.valid() {
				return nil, fmt.Errorf("question %d has unknown type %q", q.ID, q.Type)
			}
			if (q.Type == TypeSelect || q.Type == TypeMultiselect) && len(q.Options) == 0 {
				return nil, fmt.Errorf("question %d of type %s has no options", q.ID, q.Type)
			}
			lastID = q.ID
			c.index[q.ID] = questionRef{section: si, position: qi}
			c.total++
		}
	}

	if c.total == 0 {
		return nil, fmt.Errorf("catalog has no questions")
	}

	return c, nil
}

// Title is the questionnaire title
func (c *Catalog) Title() string { return c.doc.Title }

// Description is the questionnaire description
func (c *Catalog) Description() string { return c.doc.Description }

// Sections returns a copy of the ordered sections
func (c *Catalog) Sections() []Section {
	out := make([]Section, len(c.doc.Sections))
	copy(out, c.doc.Sections)
	return out
}

// Section looks up a section by id
func (c *Catalog) Section(id int) (Section, bool) {
	idx, ok := c.sections[id]
	if !ok {
		return Section{}, false
	}
	return c.doc.Sections[idx], true
}

// Question looks up a question by id
func (c *Catalog) Question(id int) (Question, bool) {
	ref, ok := c.index[id]
	if !ok {
		return Question{}, false
	}
	return c.doc.Sections[ref.section].Questions[ref.position], true
}

// SectionFor returns the id of the section that owns a question
func (c *Catalog) SectionFor(questionID int) (int, bool) {
	ref, ok := c.index[questionID]
	if !ok {
		return 0, false
	}
	return c.doc.Sections[ref.section].ID, true
}

// QuestionText returns the question text, or "" for unknown ids
func (c *Catalog) QuestionText(questionID int) string {
	q, ok := c.Question(questionID)
	if !ok {
		return ""
	}
	return q.Text
}

// TotalQuestions is the number of questions across all sections
func (c *Catalog) TotalQuestions() int { return c.total }

// MarshalJSON renders the catalog in the shape the questionnaire client expects
func (c *Catalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		document
		TotalQuestions int `json:"totalQuestions"`
	}{c.doc, c.total})
}
