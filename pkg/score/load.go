package score

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ErrInvalidScore is wrapped by every error caused by the score document
// itself, as opposed to I/O failures.
var ErrInvalidScore = errors.New("invalid score")

// schemaJSON is the JSON schema every score document must satisfy.
//
//go:embed schema.json
var schemaJSON []byte

// ValidationError lists the schema violations of a score document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidScore, strings.Join(e.Problems, "; "))
}

// Unwrap makes errors.Is(err, ErrInvalidScore) hold.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidScore
}

type document struct {
	Title string    `yaml:"title"`
	Parts []partDoc `yaml:"parts"`
}

type partDoc struct {
	Name     string       `yaml:"name"`
	Measures []measureDoc `yaml:"measures"`
}

type measureDoc struct {
	Number   int       `yaml:"number"`
	Offset   float64   `yaml:"offset"`
	Duration float64   `yaml:"duration"`
	Notes    []noteDoc `yaml:"notes"`
}

type noteDoc struct {
	Offset   float64  `yaml:"offset"`
	Duration float64  `yaml:"duration"`
	Rest     bool     `yaml:"rest"`
	Pitches  []string `yaml:"pitches"`
}

// Validate checks a YAML score document against the embedded schema.
func Validate(data []byte) error {
	var raw any

	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScore, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("validate score: %w", err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
	}

	return &ValidationError{Problems: problems}
}

// Parse validates and decodes a YAML score document.
func Parse(data []byte) (*Score, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	var doc document

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScore, err)
	}

	return fromDocument(doc)
}

// Load reads a score document from r.
func Load(r io.Reader) (*Score, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read score: %w", err)
	}

	return Parse(data)
}

// LoadFile reads a score document from path; "-" reads standard input.
func LoadFile(path string) (*Score, error) {
	if path == "-" {
		return Load(os.Stdin)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read score: %w", err)
	}

	return Parse(data)
}
