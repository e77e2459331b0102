// Package authenticity flags candidate material that tries to steer the
// scorer or shows signs of fabrication.
package authenticity

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"recroai/internal/errors"
	"recroai/internal/types"
	"recroai/internal/utils"
)

var highSeverityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(the\s+)?(previous|prior|above|earlier)\s+instructions`),
	regexp.MustCompile(`(?i)disregard\s+(the\s+|all\s+|any\s+)?(rubric|instructions|criteria)`),
	regexp.MustCompile(`(?i)give\s+(this|the)\s+candidate\s+(a\s+)?(perfect|maximum|full|100)\s*(score|marks)?`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+[^.\n]{1,60}`),
	// role markers open a line or a flattened list entry
	regexp.MustCompile(`(?im)(^|[;,])\s*(system|assistant)\s*:`),
	regexp.MustCompile(`(?i)<\|?\s*(im_start|im_end|system|assistant)\s*\|?>`),
}

// vocabulary that suggests an injection attempt but also occurs in honest
// resumes, so it only carries medium weight.
var injectionVocabulary = []string{
	"system message",
	"developer message",
	"act as",
	"override",
	"jailbreak",
	"prompt injection",
}

var boilerplatePhrases = []string{
	"team player",
	"results-driven",
	"results driven",
	"detail-oriented",
	"detail oriented",
	"hard-working",
	"hardworking",
	"self-starter",
	"go-getter",
	"think outside the box",
	"synergy",
	"passionate about",
	"proven track record",
	"excellent communication skills",
	"fast learner",
	"highly motivated",
	"dynamic professional",
	"strong work ethic",
}

var superlatives = []string{
	"best",
	"world-class",
	"world class",
	"exceptional",
	"outstanding",
	"unparalleled",
	"unmatched",
	"greatest",
	"perfect",
	"genius",
	"rockstar",
	"ninja",
	"guru",
	"legendary",
	"top 1%",
	"finest",
}

var (
	markupPattern       = regexp.MustCompile(`(?i)</?[a-z][a-z0-9]*(\s[^<>]*)?>|\[/?inst\]|\x60\x60\x60|&(nbsp|amp|lt|gt);|\{\{.*?\}\}`)
	claimedYearsPattern = regexp.MustCompile(`(?i)(\d{1,3})\s*\+?\s*(years?|yrs?)`)
	digitPattern        = regexp.MustCompile(`\d`)
	wordPattern         = regexp.MustCompile(`[\p{L}\p{N}'-]+`)
)

// Detector scores profiles for manipulation risk. It is safe for concurrent
// use.
type Detector struct {
	cfg   Config
	extra []*regexp.Regexp
	log   *errors.Logger
}

// NewDetector validates cfg and returns a detector.
func NewDetector(cfg Config, logger *errors.Logger) (*Detector, error) {
	extra, err := cfg.Validate()
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "invalid authenticity configuration", err)
	}
	if logger == nil {
		logger = errors.Nop()
	}
	return &Detector{cfg: cfg, extra: extra, log: logger}, nil
}

// Assess returns the risk assessment of a profile. It never fails; a field
// that cannot be scanned counts as clean.
func (d *Detector) Assess(p types.CandidateProfile) types.AuthenticityAssessment {
	a := types.AuthenticityAssessment{MatchedSignals: []string{}}
	var highRisk, mediumRisk float64
	highHit := false

	for _, f := range p.TextFields() {
		if f.Text == "" {
			continue
		}
		matches := d.scanHighSeverity(f)
		for _, m := range matches {
			highHit = true
			highRisk += d.cfg.HighSeverityWeight
			a.MatchedSignals = append(a.MatchedSignals, d.signal("injection", f.Name, m))
		}
	}
	highRisk = math.Min(highRisk, d.cfg.HighSeverityCap)

	for _, h := range d.heuristics() {
		weight, signal, ok := d.runHeuristic(h, p)
		if !ok {
			continue
		}
		mediumRisk += weight
		a.MatchedSignals = append(a.MatchedSignals, signal)
	}

	a.RiskScore = clamp(highRisk + mediumRisk)
	a.IsSuspicious = highHit || a.RiskScore >= d.cfg.Threshold
	return a
}

func (d *Detector) scanHighSeverity(f types.ProfileField) (matches []string) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Warn("authenticity scan failed, treating field as clean", "field", f.Name, "panic", fmt.Sprint(r))
			matches = nil
		}
	}()

	patterns := make([]*regexp.Regexp, 0, len(highSeverityPatterns)+len(d.extra))
	patterns = append(patterns, highSeverityPatterns...)
	patterns = append(patterns, d.extra...)
	for _, re := range patterns {
		if m := re.FindString(f.Text); m != "" {
			matches = append(matches, m)
		}
	}
	return matches
}

type heuristic struct {
	name string
	fn   func(types.CandidateProfile) (weight float64, detail string, ok bool)
}

func (d *Detector) heuristics() []heuristic {
	return []heuristic{
		{"injection vocabulary", d.vocabulary},
		{"boilerplate", d.boilerplate},
		{"superlatives", d.superlatives},
		{"length mismatch", d.lengthMismatch},
		{"invisible characters", d.invisibleCharacters},
		{"markup", d.markup},
	}
}

func (d *Detector) runHeuristic(h heuristic, p types.CandidateProfile) (weight float64, signal string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Warn("authenticity heuristic failed, ignoring", "heuristic", h.name, "panic", fmt.Sprint(r))
			weight, signal, ok = 0, "", false
		}
	}()
	weight, detail, ok := h.fn(p)
	if !ok || weight <= 0 {
		return 0, "", false
	}
	return weight, utils.TruncateForLog(h.name+": "+detail, d.cfg.MaxSignalLength), true
}

func (d *Detector) vocabulary(p types.CandidateProfile) (float64, string, bool) {
	text := strings.ToLower(allText(p))
	var found []string
	for _, term := range injectionVocabulary {
		if containsWord(text, term) {
			found = append(found, term)
		}
	}
	if len(found) == 0 {
		return 0, "", false
	}
	weight := math.Min(float64(len(found))*d.cfg.VocabularyWeight, d.cfg.VocabularyCap)
	return weight, strings.Join(found, ", "), true
}

func (d *Detector) boilerplate(p types.CandidateProfile) (float64, string, bool) {
	text := strings.ToLower(allText(p))
	words := len(wordPattern.FindAllString(text, -1))
	if words == 0 {
		return 0, "", false
	}
	hits := 0
	for _, phrase := range boilerplatePhrases {
		hits += strings.Count(text, phrase)
	}
	density := float64(hits) * 100 / float64(words)
	if hits < d.cfg.BoilerplateMinHits || density < d.cfg.BoilerplateDensity {
		return 0, "", false
	}
	return d.cfg.BoilerplateWeight, fmt.Sprintf("%d stock phrases in %d words", hits, words), true
}

func (d *Detector) superlatives(p types.CandidateProfile) (float64, string, bool) {
	text := strings.ToLower(allText(p))
	hits := 0
	for _, s := range superlatives {
		hits += countWord(text, s)
	}
	if hits < d.cfg.SuperlativeMinHits {
		return 0, "", false
	}
	// figures (years, percentages, team sizes) count as specifics
	if digitPattern.MatchString(p.ExperienceText) || digitPattern.MatchString(p.SummaryText) {
		return 0, "", false
	}
	return d.cfg.SuperlativeWeight, fmt.Sprintf("%d superlatives without concrete figures", hits), true
}

func (d *Detector) lengthMismatch(p types.CandidateProfile) (float64, string, bool) {
	claimed := 0
	for _, text := range []string{p.ExperienceText, p.SummaryText} {
		for _, m := range claimedYearsPattern.FindAllStringSubmatch(text, -1) {
			if n, err := strconv.Atoi(m[1]); err == nil && n > claimed {
				claimed = n
			}
		}
	}
	if claimed == 0 {
		return 0, "", false
	}
	if claimed > 50 {
		return d.cfg.LengthMismatchWeight, fmt.Sprintf("implausible claim of %d years", claimed), true
	}
	words := len(wordPattern.FindAllString(p.ExperienceText, -1))
	if float64(words) < float64(claimed)*d.cfg.MinWordsPerClaimedYear {
		return d.cfg.LengthMismatchWeight, fmt.Sprintf("%d years claimed, %d words of experience", claimed, words), true
	}
	return 0, "", false
}

func (d *Detector) invisibleCharacters(p types.CandidateProfile) (float64, string, bool) {
	var fields []string
	total := 0
	for _, f := range p.TextFields() {
		n := 0
		for _, r := range f.Text {
			if isInvisible(r) {
				n++
			}
		}
		if n > 0 {
			total += n
			fields = append(fields, f.Name)
		}
	}
	if total == 0 {
		return 0, "", false
	}
	return d.cfg.InvisibleCharWeight, fmt.Sprintf("%d in %s", total, strings.Join(fields, ", ")), true
}

func (d *Detector) markup(p types.CandidateProfile) (float64, string, bool) {
	for _, f := range p.TextFields() {
		if m := markupPattern.FindString(f.Text); m != "" {
			return d.cfg.MarkupWeight, fmt.Sprintf("%s contains %q", f.Name, m), true
		}
	}
	return 0, "", false
}

func (d *Detector) signal(kind, field, match string) string {
	return utils.TruncateForLog(fmt.Sprintf("%s in %s: %s", kind, field, strings.TrimSpace(match)), d.cfg.MaxSignalLength)
}

func isInvisible(r rune) bool {
	switch r {
	case '\u200e', '\u200f':
		// directional marks are legitimate in right-to-left text
		return false
	}
	return unicode.Is(unicode.Cf, r)
}

func allText(p types.CandidateProfile) string {
	return strings.Join([]string{p.EducationText, p.ExperienceText, p.SkillsText, p.SummaryText}, "\n")
}

// containsWord reports whether phrase occurs in text on word boundaries.
func containsWord(text, phrase string) bool {
	return countWord(text, phrase) > 0
}

func countWord(text, phrase string) int {
	n := 0
	for i := 0; ; {
		j := strings.Index(text[i:], phrase)
		if j < 0 {
			return n
		}
		start := i + j
		end := start + len(phrase)
		if boundary(text, start-1) && boundary(text, end) {
			n++
		}
		i = start + 1
	}
}

func boundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_')
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
