package recovery

import "strings"

// Patterns holds the substrings used to classify errors. Matching is case-insensitive.
type Patterns struct {
	Auth               []string `yaml:"auth"`
	Validation         []string `yaml:"validation"`
	Transient          []string `yaml:"transient"`
	CriticalOperations []string `yaml:"critical_operations"`
	StorageComponents  []string `yaml:"storage_components"`
	Connectivity       []string `yaml:"connectivity"`
}

// DefaultPatterns returns the stock classification vocabulary.
func DefaultPatterns() Patterns {
	return Patterns{
		Auth:               []string{"authentication", "unauthorized"},
		Validation:         []string{"validation", "invalid"},
		Transient:          []string{"timeout", "connection"},
		CriticalOperations: []string{"payment", "order"},
		StorageComponents:  []string{"database"},
		Connectivity:       []string{"connection"},
	}
}

// withDefaults fills every empty list from DefaultPatterns.
func (p Patterns) withDefaults() Patterns {
	d := DefaultPatterns()
	if len(p.Auth) == 0 {
		p.Auth = d.Auth
	}
	if len(p.Validation) == 0 {
		p.Validation = d.Validation
	}
	if len(p.Transient) == 0 {
		p.Transient = d.Transient
	}
	if len(p.CriticalOperations) == 0 {
		p.CriticalOperations = d.CriticalOperations
	}
	if len(p.StorageComponents) == 0 {
		p.StorageComponents = d.StorageComponents
	}
	if len(p.Connectivity) == 0 {
		p.Connectivity = d.Connectivity
	}
	return p
}

// Failure is what a rule looks at.
type Failure struct {
	Component string
	Operation string
	Message   string
	Count     int // failures recorded for the key, including this one
}

// Rule is one step of an ordered decision list. The first matching rule wins.
type Rule struct {
	Name    string
	Match   func(f Failure) bool
	Verdict bool
}

// Evaluate walks rules top to bottom and returns the first verdict, or fallback.
func Evaluate(rules []Rule, f Failure, fallback bool) (bool, string) {
	for _, r := range rules {
		if r.Match(f) {
			return r.Verdict, r.Name
		}
	}
	return fallback, "default"
}

// CriticalRules decides whether a failure warrants an operator alert.
func CriticalRules(p Patterns, maxRetries int) []Rule {
	return []Rule{
		{
			Name:    "auth",
			Match:   func(f Failure) bool { return containsAny(f.Message, p.Auth) },
			Verdict: true,
		},
		{
			Name:    "critical_operation",
			Match:   func(f Failure) bool { return containsAny(f.Operation, p.CriticalOperations) },
			Verdict: true,
		},
		{
			Name: "storage",
			Match: func(f Failure) bool {
				return containsAny(f.Component, p.StorageComponents) && !containsAny(f.Message, p.Connectivity)
			},
			Verdict: true,
		},
		{
			Name:    "repeated",
			Match:   func(f Failure) bool { return f.Count >= maxRetries },
			Verdict: true,
		},
	}
}

// RetryRules decides whether a failed operation should be attempted again.
func RetryRules(p Patterns, maxRetries int) []Rule {
	return []Rule{
		{
			Name:    "exhausted",
			Match:   func(f Failure) bool { return f.Count > maxRetries },
			Verdict: false,
		},
		{
			Name:    "auth",
			Match:   func(f Failure) bool { return containsAny(f.Message, p.Auth) },
			Verdict: false,
		},
		{
			Name:    "validation",
			Match:   func(f Failure) bool { return containsAny(f.Message, p.Validation) },
			Verdict: false,
		},
		{
			Name:    "transient",
			Match:   func(f Failure) bool { return containsAny(f.Message, p.Transient) },
			Verdict: true,
		},
	}
}

func containsAny(s string, needles []string) bool {
	s = strings.ToLower(s)
	for _, n := range needles {
		if n != "" && strings.Contains(s, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
