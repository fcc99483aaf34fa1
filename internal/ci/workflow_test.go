package ci

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// repoRoot finds the checkout this test runs in.
func repoRoot(t *testing.T) string {
	t.Helper()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	root, err := FindRoot(cwd)
	require.NoError(t, err)
	return root
}

func TestRepositoryWorkflow(t *testing.T) {
	root := repoRoot(t)

	wf, err := LoadWorkflow(filepath.Join(root, DefaultPath))
	require.NoError(t, err)

	exp := DefaultExpectations()
	assert.NoError(t, wf.Validate(exp))
	assert.NoError(t, CheckLayout(root, exp))
}

const validWorkflow = `
on:
  push:
    branches: [main]
  pull_request:
    branches: [main]
env:
  THINGAMAJIG_COLOR: always
  TARGET: x86_64-unknown-linux-musl
  BINARY: thingamajig
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - run: go build ./...
      - run: go test ./...
      - uses: example/cross@v1
        with:
          run: go build -o dist/${BINARY}-${TARGET} ./cmd/${BINARY}
      - uses: actions/upload-artifact@v4
        with:
          path: dist/${{ env.BINARY }}-${{ env.TARGET }}
`

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr []string
	}{
		{
			name:   "valid",
			mutate: func(s string) string { return s },
		},
		{
			name: "wrong branch",
			mutate: func(s string) string {
				return strings.Replace(s, "push:\n    branches: [main]", "push:\n    branches: [dev]", 1)
			},
			wantErr: []string{`push trigger must include branch "main"`},
		},
		{
			name: "missing pull_request",
			mutate: func(s string) string {
				return strings.Replace(s, "  pull_request:\n    branches: [main]\n", "", 1)
			},
			wantErr: []string{"pull_request trigger"},
		},
		{
			name: "missing color flag",
			mutate: func(s string) string {
				return strings.Replace(s, "  THINGAMAJIG_COLOR: always\n", "", 1)
			},
			wantErr: []string{"env THINGAMAJIG_COLOR is not set"},
		},
		{
			name: "wrong target",
			mutate: func(s string) string {
				return strings.Replace(s, "TARGET: x86_64-unknown-linux-musl", "TARGET: aarch64-unknown-linux-gnu", 1)
			},
			wantErr: []string{"env TARGET", "uploaded artifact path", "does not produce"},
		},
		{
			name: "test before build",
			mutate: func(s string) string {
				s = strings.Replace(s, "- run: go build ./...", "- run: PLACEHOLDER", 1)
				s = strings.Replace(s, "- run: go test ./...", "- run: go build ./...", 1)
				return strings.Replace(s, "- run: PLACEHOLDER", "- run: go test ./...", 1)
			},
			wantErr: []string{"build step runs after test"},
		},
		{
			name: "missing upload",
			mutate: func(s string) string {
				return s[:strings.Index(s, "      - uses: actions/upload-artifact@v4")]
			},
			wantErr: []string{"missing the upload step"},
		},
		{
			name: "artifact path not derived from env",
			mutate: func(s string) string {
				return strings.Replace(s, "path: dist/${{ env.BINARY }}-${{ env.TARGET }}", "path: dist/app", 1)
			},
			wantErr: []string{`uploaded artifact path "dist/app"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf, err := ParseWorkflow([]byte(tt.mutate(validWorkflow)))
			require.NoError(t, err)

			err = wf.Validate(DefaultExpectations())
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestValidateJobCount(t *testing.T) {
	wf, err := ParseWorkflow([]byte("on: {push: {branches: [main]}}\njobs: {}\n"))
	require.NoError(t, err)
	err = wf.Validate(DefaultExpectations())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one job, found 0")
}

func TestParseWorkflowInvalid(t *testing.T) {
	_, err := ParseWorkflow([]byte("jobs: [unclosed"))
	assert.Error(t, err)
}

func TestExpand(t *testing.T) {
	wf := &Workflow{Env: map[string]string{"BINARY": "thingamajig", "TARGET": "t"}}
	assert.Equal(t, "dist/thingamajig-t", wf.Expand("dist/${{ env.BINARY }}-${TARGET}"))
	assert.Equal(t, "${{ env.OTHER }} ${HOME}", wf.Expand("${{ env.OTHER }} ${HOME}"))
}

func TestCheckLayout(t *testing.T) {
	root := t.TempDir()
	exp := DefaultExpectations()
	assert.Error(t, CheckLayout(root, exp))

	dir := filepath.Join(root, "cmd", exp.Binary)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644))
	assert.NoError(t, CheckLayout(root, exp))
}
