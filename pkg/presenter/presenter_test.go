package presenter

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	presenter := New()
	assert.NotNil(t, presenter)
	assert.Equal(t, os.Stdout, presenter.output)
	assert.Equal(t, os.Stderr, presenter.errorOutput)
	assert.False(t, presenter.quiet)
}

func TestNewWithOptions(t *testing.T) {
	var output, errorOutput bytes.Buffer
	presenter := NewWithOptions(&output, &errorOutput, ColorNever)

	assert.Equal(t, &output, presenter.output)
	assert.Equal(t, &errorOutput, presenter.errorOutput)
	assert.Equal(t, ColorNever, presenter.colorMode)
}

func TestDetectColorMode(t *testing.T) {
	tests := []struct {
		name     string
		noColor  string
		ldColor  string
		expected ColorMode
	}{
		{"NO_COLOR set", "1", "", ColorNever},
		{"LINGODESK_COLOR always", "", "always", ColorAlways},
		{"LINGODESK_COLOR force", "", "force", ColorAlways},
		{"LINGODESK_COLOR never", "", "never", ColorNever},
		{"LINGODESK_COLOR off", "", "off", ColorNever},
		{"LINGODESK_COLOR auto", "", "auto", ColorAuto},
		{"default", "", "", ColorAuto},
		{"invalid value", "", "rainbow", ColorAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("NO_COLOR")
			os.Unsetenv("LINGODESK_COLOR")

			if tt.noColor != "" {
				os.Setenv("NO_COLOR", tt.noColor)
			}
			if tt.ldColor != "" {
				os.Setenv("LINGODESK_COLOR", tt.ldColor)
			}

			assert.Equal(t, tt.expected, detectColorMode())

			os.Unsetenv("NO_COLOR")
			os.Unsetenv("LINGODESK_COLOR")
		})
	}
}

func TestError(t *testing.T) {
	var errorOutput bytes.Buffer
	presenter := NewWithOptions(nil, &errorOutput, ColorNever)

	presenter.Error(errors.New("boom"), "opening store")
	assert.Contains(t, errorOutput.String(), "[ERROR] opening store: boom")

	errorOutput.Reset()
	presenter.Error(errors.New("boom"), "")
	assert.Contains(t, errorOutput.String(), "[ERROR] boom")

	errorOutput.Reset()
	presenter.Error(nil, "ignored")
	assert.Empty(t, errorOutput.String())
}

func TestQuietModeSuppressesOutput(t *testing.T) {
	var output bytes.Buffer
	presenter := NewWithOptions(&output, &output, ColorNever)
	presenter.SetQuiet(true)

	presenter.Success("done")
	presenter.Warning("careful")
	presenter.Info("hello")
	presenter.Section("Header")
	presenter.Separator()

	assert.True(t, presenter.IsQuiet())
	assert.Empty(t, output.String())
}

func TestMessages(t *testing.T) {
	var output bytes.Buffer
	presenter := NewWithOptions(&output, &output, ColorNever)

	presenter.Success("seeded 8 entries")
	presenter.Warning("endpoint unreachable")
	presenter.Info("listening on :5000")
	presenter.Section("Knowledge Base")

	got := output.String()
	assert.Contains(t, got, "✓ seeded 8 entries")
	assert.Contains(t, got, "⚠ endpoint unreachable")
	assert.Contains(t, got, "listening on :5000")
	assert.Contains(t, got, "Knowledge Base\n--------------")
}

func TestSeparator(t *testing.T) {
	var output bytes.Buffer
	presenter := NewWithOptions(&output, &output, ColorNever)

	presenter.Separator()
	assert.Equal(t, strings.Repeat("-", 60)+"\n", output.String())
}
