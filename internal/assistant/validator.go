package assistant

import (
	"regexp"
	"strings"
)

type VerdictKind int

const (
	VerdictCompliant VerdictKind = iota
	VerdictMissingSection
	VerdictBannedTerm
	VerdictMissingReferences
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictCompliant:
		return "compliant"
	case VerdictMissingSection:
		return "missing_section"
	case VerdictBannedTerm:
		return "banned_term"
	case VerdictMissingReferences:
		return "missing_references"
	default:
		return "unknown"
	}
}

// Verdict is the result of a compliance check. Detail names the missing
// section or the banned term that was found.
type Verdict struct {
	Kind   VerdictKind
	Detail string
}

func (v Verdict) Compliant() bool {
	return v.Kind == VerdictCompliant
}

var (
	permalinkPattern = regexp.MustCompile(`https?://[^\s)>\]]+`)
	mediaIDPattern   = regexp.MustCompile(`\b\d{6,}(?:_\d+)?\b`)
)

// Validator checks generated replies against the output contract:
// required section markers present, no banned technical vocabulary, and a
// references section carrying a permalink and a post id.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Check(content string) Verdict {
	lower := strings.ToLower(content)

	for _, section := range []string{"objective & baseline", "next 7 days"} {
		if !strings.Contains(lower, section) {
			return Verdict{Kind: VerdictMissingSection, Detail: section}
		}
	}

	if term := findBannedTerm(content); term != "" {
		return Verdict{Kind: VerdictBannedTerm, Detail: term}
	}

	refIdx := strings.Index(lower, "post references")
	if refIdx < 0 {
		return Verdict{Kind: VerdictMissingReferences}
	}
	references := content[refIdx:]
	if !permalinkPattern.MatchString(references) || !mediaIDPattern.MatchString(references) {
		return Verdict{Kind: VerdictMissingReferences}
	}

	return Verdict{Kind: VerdictCompliant}
}
