package assistant_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/glowline/pulsedesk/internal/assistant"
)

const compliantReply = `Objective & Baseline: grow weekly reach from 1,200 to 1,500.

Insight: carousels reach 40% more accounts than single images.

Next 7 Days:
- Publish three carousels on peak evenings.
- Reuse the top caption format from last week.

Impact & Measurement: expect reach near 1,350 by Sunday; compare in weekly insights.

Risks: fewer posts overall could lower total touchpoints; watch daily reach.

Post References:
- 17895695668004550 https://www.instagram.com/p/CxYz123abc/`

func TestValidatorCompliant(t *testing.T) {
	v := assistant.NewValidator()

	verdict := v.Check(compliantReply)

	assert.True(t, verdict.Compliant())
	assert.Equal(t, assistant.VerdictCompliant, verdict.Kind)
}

func TestValidatorMissingSection(t *testing.T) {
	v := assistant.NewValidator()

	verdict := v.Check(`Insight: something interesting.

Post References:
- 17895695668004550 https://www.instagram.com/p/CxYz123abc/`)

	assert.Equal(t, assistant.VerdictMissingSection, verdict.Kind)
	assert.Equal(t, "objective & baseline", verdict.Detail)
}

func TestValidatorBannedTerm(t *testing.T) {
	v := assistant.NewValidator()

	verdict := v.Check(`Objective & Baseline: fix things.

Next 7 Days: wait for the rate limit to reset.

Post References:
- 17895695668004550 https://www.instagram.com/p/CxYz123abc/`)

	assert.Equal(t, assistant.VerdictBannedTerm, verdict.Kind)
	assert.Equal(t, "rate limit", verdict.Detail)
}

func TestValidatorMissingReferences(t *testing.T) {
	v := assistant.NewValidator()

	tests := []struct {
		name    string
		content string
	}{
		{
			name: "no references section",
			content: `Objective & Baseline: grow reach.

Next 7 Days: post more carousels.`,
		},
		{
			name: "references without permalink",
			content: `Objective & Baseline: grow reach.

Next 7 Days: post more carousels.

Post References:
- 17895695668004550`,
		},
		{
			name: "references without media id",
			content: `Objective & Baseline: grow reach.

Next 7 Days: post more carousels.

Post References:
- https://www.instagram.com/p/CxYzabc/`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			verdict := v.Check(tc.content)
			assert.Equal(t, assistant.VerdictMissingReferences, verdict.Kind)
		})
	}
}
