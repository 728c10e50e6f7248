package textproc

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"texvoice/backend/internal/dictionary"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline() *Pipeline {
	return New(rand.NewPCG(42, 7), 50)
}

func TestPipeline_Transform_Stages(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "こんにちは", "こんにちは"},
		{"url", "見て https://example.com/path?q=1&x=y です", "見て  URL  です"},
		{"two urls", "http://a.jp http://b.jp", " URL   URL "},
		{"code block spans lines", "前```go\nfmt.Println()\n```後", "前 コード 後"},
		{"code block non-greedy", "```a```と```b```", " コード と コード "},
		{"newlines", "一行目\n二行目\n三行目", "一行目、二行目、三行目"},
		{"custom emoji", "<:pepe:123456> いいね", "pepe いいね"},
		{"animated emoji", "<a:party:99>", "party"},
		{"raw mentions", "<@123> <@!456> <#789>やあ", "  やあ"},
	}

	p := newTestPipeline()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Transform(tt.raw, nil).Text)
		})
	}
}

func TestPipeline_Transform_Dice(t *testing.T) {
	p := newTestPipeline()

	ref := rand.New(rand.NewPCG(42, 7))
	sum := 0
	for i := 0; i < 3; i++ {
		sum += 1 + ref.IntN(6)
	}
	require.GreaterOrEqual(t, sum, 3)
	require.LessOrEqual(t, sum, 18)

	result := p.Transform("3d6", nil)

	want := "3d6 : " + strconv.Itoa(sum)
	assert.Equal(t, want, result.Text)
	assert.Equal(t, want, result.DiceReport)
}

func TestPipeline_Transform_DiceWholeTextOnly(t *testing.T) {
	p := newTestPipeline()

	for _, raw := range []string{"roll 3d6 please", "3d6!", "d6", "3d", "3d0", "1001d6"} {
		result := p.Transform(raw, nil)
		assert.Empty(t, result.DiceReport, raw)
		assert.Equal(t, raw, result.Text, raw)
	}
}

// topSource makes every roll land on the highest face
type topSource struct{}

func (topSource) Uint64() uint64 { return ^uint64(0) }

func TestPipeline_Transform_DiceSumStaysInRange(t *testing.T) {
	p := New(topSource{}, 200)

	raw := strconv.Itoa(MaxDice) + "d" + strconv.Itoa(MaxSides)
	report := p.Transform(raw, nil).DiceReport
	require.True(t, strings.HasPrefix(report, raw+" : "), report)

	sum, err := strconv.Atoi(strings.TrimPrefix(report, raw+" : "))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sum, MaxDice)
	assert.LessOrEqual(t, sum, MaxDice*MaxSides)

	for _, tooWide := range []string{
		"2d" + strconv.Itoa(MaxSides+1),
		"2d9223372036854775807",
		"2d99999999999999999999",
	} {
		result := p.Transform(tooWide, nil)
		assert.Empty(t, result.DiceReport, tooWide)
		assert.Equal(t, tooWide, result.Text, tooWide)
	}
}

func TestPipeline_Transform_DiceBeforeDictionary(t *testing.T) {
	p := newTestPipeline()
	d := dictionary.New()
	require.NoError(t, d.Register("d", "でぃー"))

	result := p.Transform("1d1", d)

	assert.Equal(t, "1d1 : 1", result.DiceReport)
	assert.Equal(t, "1でぃー1 : 1", result.Text)
}

func TestPipeline_Transform_DictionaryCascade(t *testing.T) {
	p := newTestPipeline()
	d := dictionary.New()
	require.NoError(t, d.Register("A", "エックス"))
	require.NoError(t, d.Register("エックス", "ビー"))

	assert.Equal(t, "ビー", p.Transform("A", d).Text)
}

func TestPipeline_Transform_Truncates(t *testing.T) {
	p := newTestPipeline()

	long := strings.Repeat("あ", 60)
	got := p.Transform(long, nil).Text
	assert.Equal(t, 50, utf8.RuneCountInString(got))
	assert.Equal(t, strings.Repeat("あ", 50), got)

	exact := strings.Repeat("a", 50)
	assert.Equal(t, exact, p.Transform(exact, nil).Text)
}

func TestPipeline_Transform_TruncatesAfterSubstitution(t *testing.T) {
	p := newTestPipeline()
	d := dictionary.New()
	require.NoError(t, d.Register("w", "わら"))

	got := p.Transform(strings.Repeat("w", 30), d).Text

	assert.Equal(t, 50, utf8.RuneCountInString(got))
	assert.False(t, strings.HasSuffix(got, "…"))
}
