package mailsort

import (
	"regexp"
	"strings"
)

// Rule is a named deny rule evaluated against the lower-cased candidate
// folder path. A rule that matches rejects the path.
type Rule struct {
	Name  string
	Match func(key string) bool
}

// PatternRule builds a deny rule from a regular expression matched anywhere
// in the lower-cased path. The expression must compile.
func PatternRule(name, expr string) Rule {
	re := regexp.MustCompile(expr)
	return Rule{Name: name, Match: re.MatchString}
}

// Validator normalizes oracle suggestions into rooted folder paths and
// rejects paths that hit a deny rule. Rejected paths resolve to the
// fallback folder under the root.
type Validator struct {
	root     string
	fallback string
	rules    []Rule
}

// NewValidator builds a validator for the given root and fallback folder
// names. The built-in deny rules reject root look-alikes, ellipsis
// placeholders, and characters outside the folder charset; extra rules run
// after the built-ins in order.
func NewValidator(root, fallback string, extra ...Rule) *Validator {
	v := &Validator{root: root, fallback: fallback}
	v.rules = defaultRules(root)
	v.rules = append(v.rules, extra...)
	return v
}

func defaultRules(root string) []Rule {
	key := regexp.QuoteMeta(strings.ToLower(root))
	return []Rule{
		// Root name followed by anything other than a path separator,
		// e.g. "Inbox 2" or "Inbox-old" masquerading as the root.
		PatternRule("root-like", key+`[^/]*[^/]`),
		// Truncated model output such as "Inbox/Fin...".
		{Name: "ellipsis", Match: func(k string) bool { return strings.Contains(k, "...") }},
		// Anything outside letters, digits, separators, spaces, and hyphens.
		PatternRule("charset", `[^a-z0-9/ \-]`),
		// A recurring bad completion observed from small local models.
		PatternRule("known-bad", key+` opr`),
	}
}

// Fallback returns the rooted fallback path rejected suggestions map to.
func (v *Validator) Fallback() string {
	return v.root + "/" + v.fallback
}

// Validate normalizes the suggested path and evaluates the deny rules. It
// returns the normalized rooted path, or the fallback path together with a
// *RuleViolation naming the rule that matched. The returned path is always
// usable; the error is advisory.
func (v *Validator) Validate(suggestion string) (string, error) {
	path := normalizePath(suggestion)
	if path == "" {
		return v.Fallback(), &RuleViolation{Rule: "empty", Path: suggestion}
	}
	rootKey := CanonicalKey(v.root)
	if key := CanonicalKey(path); key != rootKey && !strings.HasPrefix(key, rootKey+"/") {
		path = v.root + "/" + path
	}
	// Rules see the path folded in case only. Accent stripping is the
	// cache's concern; here it would erase exactly the characters the
	// charset rule exists to reject.
	key := strings.ToLower(path)
	for _, rule := range v.rules {
		if rule.Match(key) {
			return v.Fallback(), &RuleViolation{Rule: rule.Name, Path: path}
		}
	}
	return path, nil
}

var spaceRuns = regexp.MustCompile(`\s+`)

// normalizePath trims surrounding whitespace and slashes and collapses
// internal whitespace runs to single spaces.
func normalizePath(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "/")
	s = spaceRuns.ReplaceAllString(s, " ")
	return s
}
