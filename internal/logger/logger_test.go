package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DEBUG, false},
		{"INFO", INFO, false},
		{"", INFO, false},
		{" warning ", WARN, false},
		{"error", ERROR, false},
		{"loud", INFO, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetWriter(&buf)
	SetLevel(WARN)
	t.Cleanup(func() {
		SetLevel(INFO)
		_ = SetLogOutput('c', "")
	})

	Info("hidden")
	Warn("shown", 3, errors.New("boom"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] logger_test.go:")
	assert.Contains(t, out, "shown 3 boom")
}

func TestStructArgumentsAreRenderedAsJSON(t *testing.T) {
	var buf bytes.Buffer
	SetWriter(&buf)
	t.Cleanup(func() { _ = SetLogOutput('c', "") })

	Info("window", struct {
		Team string `json:"team"`
	}{Team: "Arsenal"})

	assert.Contains(t, buf.String(), `"team": "Arsenal"`)
}

func TestSetLogOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "podds.log")
	require.NoError(t, SetLogOutput('f', path))
	t.Cleanup(func() { _ = SetLogOutput('c', "") })

	Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
	assert.NotContains(t, string(data), colorGreen)

	assert.Error(t, SetLogOutput('x', ""))
}

type countingStringer struct{ calls int }

func (c *countingStringer) String() string {
	c.calls++
	return "fixture"
}

func TestStringerFormattedOnlyWhenLogged(t *testing.T) {
	var buf bytes.Buffer
	SetWriter(&buf)
	SetLevel(INFO)
	t.Cleanup(func() { _ = SetLogOutput('c', "") })

	s := &countingStringer{}
	Debug("rated", s)
	assert.Equal(t, 0, s.calls)
	assert.Empty(t, buf.String())

	Info("rated", s)
	assert.Equal(t, 1, s.calls)
	assert.Contains(t, buf.String(), "rated fixture")
}
