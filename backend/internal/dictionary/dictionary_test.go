package dictionary

import (
	"testing"

	apperrors "texvoice/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(d *Dictionary) []Entry {
	var out []Entry
	for k, v := range d.List() {
		out = append(out, Entry{Key: k, Replacement: v})
	}
	return out
}

func TestDictionary_Rewrite_Cascades(t *testing.T) {
	d := New()
	require.NoError(t, d.Register("A", "エックス"))
	require.NoError(t, d.Register("エックス", "ビー"))

	assert.Equal(t, "ビー", d.Rewrite("A"))
}

func TestDictionary_Rewrite_RegistrationOrder(t *testing.T) {
	d := New()
	require.NoError(t, d.Register("エックス", "ビー"))
	require.NoError(t, d.Register("A", "エックス"))

	// The second rule's output is not revisited by the first
	assert.Equal(t, "エックス", d.Rewrite("A"))
}

func TestDictionary_Register_RejectsLatinReading(t *testing.T) {
	d := New()
	require.NoError(t, d.Register("草", "くさ"))
	before := collect(d)

	err := d.Register("w", "warai")

	require.Error(t, err)
	var verr *apperrors.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, before, collect(d))
}

func TestDictionary_Register_RejectsBadPattern(t *testing.T) {
	d := New()

	err := d.Register("(unclosed", "かっこ")

	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypePattern))
	assert.Zero(t, d.Len())
}

func TestDictionary_Register_OverwriteKeepsPosition(t *testing.T) {
	d := New()
	require.NoError(t, d.Register("a", "あ"))
	require.NoError(t, d.Register("b", "び"))
	require.NoError(t, d.Register("c", "し"))

	require.NoError(t, d.Register("a", "えー"))

	assert.Equal(t, []Entry{
		{Key: "a", Replacement: "えー"},
		{Key: "b", Replacement: "び"},
		{Key: "c", Replacement: "し"},
	}, collect(d))
}

func TestDictionary_Register_PatternSyntax(t *testing.T) {
	d := New()
	require.NoError(t, d.Register(`w{2,}`, "わらわら"))
	require.NoError(t, d.Register(`(?<=大)草`, "くさ"))

	assert.Equal(t, "大くさ わらわら", d.Rewrite("大草 wwww"))
}

func TestDictionary_Unregister(t *testing.T) {
	d := New()
	require.NoError(t, d.Register("a", "あ"))
	require.NoError(t, d.Register("b", "び"))
	require.NoError(t, d.Register("c", "し"))

	require.NoError(t, d.Unregister("b"))
	assert.Equal(t, []Entry{{Key: "a", Replacement: "あ"}, {Key: "c", Replacement: "し"}}, collect(d))

	// Index stays consistent after the removal
	require.NoError(t, d.Register("c", "しー"))
	assert.Equal(t, []Entry{{Key: "a", Replacement: "あ"}, {Key: "c", Replacement: "しー"}}, d.Entries())

	err := d.Unregister("missing")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestDictionary_List_Restartable(t *testing.T) {
	d := New()
	require.NoError(t, d.Register("x", "えっくす"))
	require.NoError(t, d.Register("y", "わい"))

	first := collect(d)
	second := collect(d)
	assert.Equal(t, first, second)
	assert.Len(t, first, 2)

	// Early break is honoured
	count := 0
	for range d.List() {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestRegistry_Load(t *testing.T) {
	r := NewRegistry()

	errs := r.Load("g1", []Entry{
		{Key: "a", Replacement: "あ"},
		{Key: "[", Replacement: "かっこ"},
		{Key: "b", Replacement: "bee"},
		{Key: "c", Replacement: "し"},
	})

	assert.Len(t, errs, 2)
	assert.Equal(t, []Entry{{Key: "a", Replacement: "あ"}, {Key: "c", Replacement: "し"}}, r.Get("g1").Entries())
	assert.Nil(t, r.Get("g2"))
	assert.Equal(t, []string{"g1"}, r.Guilds())
	assert.Contains(t, r.Snapshot(), "g1")
}
