package testutils

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/glit/pkg/trusted"
)

func TestStripExpressionMarkers(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{"empty markers", "<!----><b>x</b><!---->", "<b>x</b>"},
		{"template markers", "<p><!--glit$0$-->a<!--glit$12$--></p>", "<p>a</p>"},
		{"user comments survive", "<!-- note --><i></i>", "<!-- note --><i></i>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripExpressionMarkers(tt.markup))
		})
	}
}

func TestNewContainer(t *testing.T) {
	doc, policy := EnforcedDocument(t)
	container := NewContainer(t, doc)

	assert.True(t, doc.Contains(container))
	assert.Empty(t, doc.Records())
	assert.True(t, doc.TrustedTypes().Enforced())

	err := doc.SetProperty(container, "innerHTML", "<b>x</b>")
	assert.ErrorIs(t, err, trusted.ErrPolicyViolation)
	require.NoError(t, doc.SetProperty(container, "innerHTML", policy.MustCreateHTML("<b>x</b>")))
}

func TestWriteScenario(t *testing.T) {
	path := WriteScenario(t, "s.yml", "name: x\n")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name: x\n", string(data))
}

func TestWaitForFileChange(t *testing.T) {
	path := WriteScenario(t, "s.yml", "a")
	info, err := os.Stat(path)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		later := info.ModTime().Add(time.Second)
		_ = os.Chtimes(path, later, later)
	}()
	WaitForFileChange(t, path, info.ModTime(), time.Second)
}
