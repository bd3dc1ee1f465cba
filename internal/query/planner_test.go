package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanLiteralProducesUnionOfCaseVariants(t *testing.T) {
	q := Parse("hello")
	plan := PlanQuery(q)
	require.NotNil(t, plan.Narrowing)
	require.Equal(t, StepUnion, plan.Narrowing.Kind)
	for _, sub := range plan.Narrowing.Sub {
		require.Equal(t, StepTrigramIntersect, sub.Kind)
		require.NotEmpty(t, sub.Trigrams)
	}
}

func TestPlanShortLiteralProducesTokenLookup(t *testing.T) {
	q := Parse("ab")
	plan := PlanQuery(q)
	require.NotNil(t, plan.Narrowing)
	require.Equal(t, StepTokenLookup, plan.Narrowing.Kind)
	require.Equal(t, "ab", plan.Narrowing.Token)
}

func TestPlanAndIntersects(t *testing.T) {
	q := Parse("foo bar")
	plan := PlanQuery(q)
	require.Equal(t, StepIntersect, plan.Narrowing.Kind)
	require.Len(t, plan.Narrowing.Sub, 2)
}

func TestPlanOrWithUnlowerableBranchHasNoNarrowing(t *testing.T) {
	// a regex with no usable literal prefix can't be lowered; the OR as a
	// whole must then have no narrowing step at all.
	q := Parse(`foo | re:/.*/`)
	plan := PlanQuery(q)
	require.Nil(t, plan.Narrowing)
}

func TestPlanOrWithBothLowerableBranchesUnions(t *testing.T) {
	q := Parse("foo | bar")
	plan := PlanQuery(q)
	require.Equal(t, StepUnion, plan.Narrowing.Kind)
	require.Len(t, plan.Narrowing.Sub, 2)
}

func TestPlanNotAloneHasNoNarrowing(t *testing.T) {
	q := Parse("-foo")
	plan := PlanQuery(q)
	require.Nil(t, plan.Narrowing)
}

func TestPlanRegexShortPrefixHasNoNarrowing(t *testing.T) {
	q := Parse(`re:/ab.*/`)
	plan := PlanQuery(q)
	require.Nil(t, plan.Narrowing)
}

func TestPlanRegexLongPrefixNarrows(t *testing.T) {
	q := Parse(`re:/hello.*/`)
	plan := PlanQuery(q)
	require.NotNil(t, plan.Narrowing)
}

func TestPlanFiltersAppendStepFilter(t *testing.T) {
	q := Parse("foo ext:go")
	plan := PlanQuery(q)
	require.Equal(t, StepIntersect, plan.Narrowing.Kind)
	found := false
	for _, sub := range plan.Narrowing.Sub {
		if sub.Kind == StepFilter {
			found = true
		}
	}
	require.True(t, found)
}

func TestPlanFilterOnlyQueryHasBareFilterStep(t *testing.T) {
	q := Parse("ext:go")
	plan := PlanQuery(q)
	require.Equal(t, StepFilter, plan.Narrowing.Kind)
}

func TestLiteralPrefixStopsAtMetacharacter(t *testing.T) {
	require.Equal(t, "abc", literalPrefix("abc.*"))
	require.Equal(t, "abc", literalPrefix("abc["))
	require.Equal(t, "abc", literalPrefix(`abc\d+`))
	require.Equal(t, "abc", literalPrefix("^abc"))
}
