package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codex/internal/store"
)

func TestLoad_DefaultsAndMerge(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := NewManager(st)

	s, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)

	require.NoError(t, st.Set(ctx, store.KeySettings, []byte(`{"theme":"light","fontSize":18}`)))
	s, err = m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Settings{Theme: "light", FontSize: 18, TabSize: 4, WordWrap: true, LineNumbers: true}, s)

	require.NoError(t, st.Set(ctx, store.KeySettings, []byte(`{not json`)))
	s, err = m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Settings)
		ok     bool
	}{
		{"defaults", func(*Settings) {}, true},
		{"light theme", func(s *Settings) { s.Theme = "light" }, true},
		{"unknown theme", func(s *Settings) { s.Theme = "solarized" }, false},
		{"font too small", func(s *Settings) { s.FontSize = 7 }, false},
		{"font max", func(s *Settings) { s.FontSize = 72 }, true},
		{"tab zero", func(s *Settings) { s.TabSize = 0 }, false},
		{"tab too wide", func(s *Settings) { s.TabSize = 9 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Defaults()
			tc.mutate(&s)
			if tc.ok {
				assert.NoError(t, s.Validate())
			} else {
				assert.Error(t, s.Validate())
			}
		})
	}
}

func TestUpdateAndReset(t *testing.T) {
	ctx := context.Background()
	m := NewManager(store.NewMemoryStore())

	s, err := m.Update(ctx, []byte(`{"tabSize":2,"wordWrap":false}`))
	require.NoError(t, err)
	assert.Equal(t, 2, s.TabSize)
	assert.False(t, s.WordWrap)

	_, err = m.Update(ctx, []byte(`{"fontSize":100}`))
	assert.ErrorContains(t, err, "invalid font size")
	s, err = m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 14, s.FontSize, "a rejected update is not stored")
	assert.Equal(t, 2, s.TabSize)

	s, err = m.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestKeyStore(t *testing.T) {
	ctx := context.Background()
	k := NewKeyStore(store.NewMemoryStore())

	key, err := k.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, key)

	assert.ErrorIs(t, k.Set(ctx, "   "), ErrEmptyAPIKey)
	require.NoError(t, k.Set(ctx, "  AIza-secret-1234 \n"))
	key, err = k.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AIza-secret-1234", key)

	require.NoError(t, k.Delete(ctx))
	require.NoError(t, k.Delete(ctx))
	key, _ = k.Get(ctx)
	assert.Empty(t, key)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "***", Mask("abc"))
	assert.Equal(t, "******wxyz", Mask("abcdefwxyz"))
}

func TestUpdate_RejectsBadJSON(t *testing.T) {
	m := NewManager(store.NewMemoryStore())
	_, err := m.Update(context.Background(), []byte(`{"theme":`))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = m.Update(context.Background(), []byte(`{"theme":"blue"}`))
	assert.ErrorIs(t, err, ErrInvalid)
}
