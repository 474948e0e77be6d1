// Package classify maps free-text pipeline stage labels to outcome buckets.
package classify

import (
	"os"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/pipeline-reports/internal/model"
)

// Vocabulary lists the label fragments that mark each category. Matching is
// a case- and accent-insensitive substring test.
type Vocabulary struct {
	Won       []string `yaml:"won"`
	Lost      []string `yaml:"lost"`
	FollowUp  []string `yaml:"follow_up"`
	Confirmed []string `yaml:"confirmed"`
	// UrgentMarker splits follow-up stages into urgent and normal.
	UrgentMarker string `yaml:"urgent_marker"`
}

// DefaultVocabulary covers the Spanish stage names used by the sales team
// and HubSpot's built-in English stage ids.
var DefaultVocabulary = Vocabulary{
	Won:          []string{"cierre ganado", "closedwon"},
	Lost:         []string{"cierre perdido", "closedlost"},
	FollowUp:     []string{"seguimiento", "negociaci"},
	Confirmed:    []string{"confirmado", "orden recibida"},
	UrgentMarker: "+14",
}

// Result holds the categories a label matched. A label may match none.
type Result struct {
	Won            bool `json:"won"`
	Lost           bool `json:"lost"`
	FollowUp       bool `json:"follow_up"`
	Urgent         bool `json:"urgent"`
	ConfirmedOrder bool `json:"confirmed_order"`
}

// Outcome collapses the result into the won/lost/open partition. Won takes
// precedence over lost when a label is ambiguous.
func (r Result) Outcome() model.Outcome {
	switch {
	case r.Won:
		return model.OutcomeWon
	case r.Lost:
		return model.OutcomeLost
	default:
		return model.OutcomeOpen
	}
}

// Classifier classifies labels against a folded copy of a vocabulary.
type Classifier struct {
	won, lost, followUp, confirmed []string
	urgent                         string
}

// New returns a Classifier for v. Empty fragments are ignored so they can
// never match every label.
func New(v Vocabulary) *Classifier {
	return &Classifier{
		won:       foldAll(v.Won),
		lost:      foldAll(v.Lost),
		followUp:  foldAll(v.FollowUp),
		confirmed: foldAll(v.Confirmed),
		urgent:    fold(v.UrgentMarker),
	}
}

var defaultClassifier = New(DefaultVocabulary)

// Default returns the classifier built from DefaultVocabulary.
func Default() *Classifier {
	return defaultClassifier
}

// Classify classifies label with the default vocabulary.
func Classify(label string) Result {
	return defaultClassifier.Classify(label)
}

// Classify is total and pure: the empty label matches nothing.
func (c *Classifier) Classify(label string) Result {
	l := fold(label)
	if l == "" {
		return Result{}
	}

	r := Result{
		Won:            containsAny(l, c.won),
		Lost:           containsAny(l, c.lost),
		FollowUp:       containsAny(l, c.followUp),
		ConfirmedOrder: containsAny(l, c.confirmed),
	}
	r.Urgent = r.FollowUp && c.urgent != "" && strings.Contains(l, c.urgent)
	return r
}

// LoadVocabulary reads a vocabulary from a YAML file. Categories missing
// from the file keep their default fragments.
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, eris.Wrapf(err, "classify: read vocabulary %s", path)
	}

	var wrapper struct {
		Stages Vocabulary `yaml:"stages"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Vocabulary{}, eris.Wrap(err, "classify: parse vocabulary")
	}

	v := wrapper.Stages
	if len(v.Won) == 0 {
		v.Won = DefaultVocabulary.Won
	}
	if len(v.Lost) == 0 {
		v.Lost = DefaultVocabulary.Lost
	}
	if len(v.FollowUp) == 0 {
		v.FollowUp = DefaultVocabulary.FollowUp
	}
	if len(v.Confirmed) == 0 {
		v.Confirmed = DefaultVocabulary.Confirmed
	}
	if v.UrgentMarker == "" {
		v.UrgentMarker = DefaultVocabulary.UrgentMarker
	}
	return v, nil
}

// fold strips combining marks and applies Unicode case folding, so
// "Negociación" and "NEGOCIACION" compare equal. Transformers and casers are
// stateful, so new ones are made per call.
func fold(s string) string {
	s = strings.TrimSpace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}
	return cases.Fold().String(s)
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if f := fold(s); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}
