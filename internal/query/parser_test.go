package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSimpleLiteral(t *testing.T) {
	q := Parse("hello")
	require.Equal(t, KindLiteral, q.Root.Kind)
	require.Equal(t, "hello", q.Root.Text)
}

func TestParseAndSequence(t *testing.T) {
	q := Parse("foo bar")
	require.Equal(t, KindAnd, q.Root.Kind)
	require.Len(t, q.Root.Children, 2)
}

func TestParseOr(t *testing.T) {
	q := Parse("foo | bar")
	require.Equal(t, KindOr, q.Root.Kind)
	require.Len(t, q.Root.Children, 2)
}

func TestParseNot(t *testing.T) {
	q := Parse("-foo")
	require.Equal(t, KindNot, q.Root.Kind)
	require.Equal(t, KindLiteral, q.Root.Children[0].Kind)
}

func TestParseBoostDefault(t *testing.T) {
	q := Parse("^foo")
	require.Equal(t, KindBoostedLiteral, q.Root.Kind)
	require.Equal(t, 2.0, q.Root.Boost)
}

func TestParseBoostExplicit(t *testing.T) {
	q := Parse("^3.5:foo")
	require.Equal(t, KindBoostedLiteral, q.Root.Kind)
	require.Equal(t, 3.5, q.Root.Boost)
}

func TestParsePhrase(t *testing.T) {
	q := Parse(`"hello world"`)
	require.Equal(t, KindPhrase, q.Root.Kind)
	require.Equal(t, "hello world", q.Root.Text)
}

func TestParsePhraseEscape(t *testing.T) {
	q := Parse(`"say \"hi\""`)
	require.Equal(t, KindPhrase, q.Root.Kind)
	require.Equal(t, `say "hi"`, q.Root.Text)
}

func TestParseRegex(t *testing.T) {
	q := Parse(`re:/[a-z]+/`)
	require.Equal(t, KindRegex, q.Root.Kind)
	require.Equal(t, "[a-z]+", q.Root.Text)
}

func TestParseGroup(t *testing.T) {
	q := Parse("(foo | bar) baz")
	require.Equal(t, KindAnd, q.Root.Kind)
	require.Len(t, q.Root.Children, 2)
	require.Equal(t, KindOr, q.Root.Children[0].Kind)
}

func TestParseFieldFilters(t *testing.T) {
	q := Parse("foo path:src/* ext:Go lang:go size:>100 mtime:>1000 line:5-10 sort:recency top:20")
	require.Equal(t, "src/*", q.PathGlob)
	require.Equal(t, "go", q.Ext)
	require.Equal(t, "go", q.Lang)
	require.Equal(t, SizeFilter{Op: ">", Bytes: 100}, q.Size)
	require.Equal(t, MtimeFilter{Op: ">", Unix: 1000}, q.Mtime)
	require.Equal(t, LineFilter{Low: 5, High: 10}, q.Line)
	require.Equal(t, "recency", q.Sort)
	require.Equal(t, 20, q.Top)
	require.Equal(t, KindLiteral, q.Root.Kind)
}

func TestParseMtimeDayWindow(t *testing.T) {
	q := Parse("foo mtime:2026-01-15")
	require.Equal(t, "=", q.Mtime.Op)
	require.Less(t, q.Mtime.StartUnix, q.Mtime.EndUnix)
	require.Equal(t, int64(86400), q.Mtime.EndUnix-q.Mtime.StartUnix)
}

func TestParseNearField(t *testing.T) {
	q := Parse("near:foo,bar,5")
	require.Equal(t, KindNear, q.Root.Kind)
	require.Equal(t, []string{"foo", "bar"}, q.Root.NearTerms)
	require.Equal(t, 5, q.Root.NearDistance)
}

func TestParseNearDefaultDistance(t *testing.T) {
	q := Parse("near:foo,bar")
	require.Equal(t, KindNear, q.Root.Kind)
	require.Equal(t, 10, q.Root.NearDistance)
}

func TestParseMalformedDegradesToEmpty(t *testing.T) {
	for _, s := range []string{"(foo", "foo)", `"unterminated`, "-", "()"} {
		q := Parse(s)
		require.Equal(t, KindEmpty, q.Root.Kind, "input %q should degrade to Empty", s)
	}
}

func TestParseEmptyString(t *testing.T) {
	q := Parse("")
	require.Equal(t, KindEmpty, q.Root.Kind)
}

func TestParseFieldOnlyQueryHasEmptyRoot(t *testing.T) {
	q := Parse("ext:go")
	require.Equal(t, KindEmpty, q.Root.Kind)
	require.Equal(t, "go", q.Ext)
}
