package testutils

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/conneroisu/glit/pkg/dom"
	"github.com/conneroisu/glit/pkg/trusted"
)

// expressionMarkers matches the anchors pkg/lit leaves in markup. pkg/lit
// tests import this package, so it cannot call lit.StripMarkers.
var expressionMarkers = regexp.MustCompile(`<!--(glit\$\d+\$)?-->`)

// StripExpressionMarkers removes the comment anchors that child bindings
// leave in rendered markup.
func StripExpressionMarkers(markup string) string {
	return expressionMarkers.ReplaceAllString(markup, "")
}

// NewContainer creates a <div> attached to the document body.
func NewContainer(t *testing.T, doc *dom.Document) *html.Node {
	t.Helper()
	container := doc.CreateElement("div")
	doc.AppendChild(doc.Body(), container)
	doc.TakeRecords()
	return container
}

// EnforcedDocument returns a document whose sinks require trusted values,
// and a policy that approves its input unchanged.
func EnforcedDocument(t *testing.T) (*dom.Document, *trusted.Policy) {
	t.Helper()
	f := trusted.NewFactory(trusted.Enforce())
	policy, err := trusted.PassthroughPolicy(f, "test-policy")
	require.NoError(t, err)
	return dom.NewDocument(dom.WithTrustedTypes(f)), policy
}

// WriteScenario writes a scenario file into a temporary directory and
// returns its path.
func WriteScenario(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// WaitForFileChange waits for a file to be modified.
func WaitForFileChange(
	t *testing.T,
	filePath string,
	originalModTime time.Time,
	timeout time.Duration,
) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		info, err := os.Stat(filePath)
		if err == nil && info.ModTime().After(originalModTime) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("File %s was not modified within %v", filePath, timeout)
}
