// Package ci models the repository's CI workflow file and checks it against
// the project layout: the triggers, the required environment, the order of
// the build steps and the artifact it publishes.
package ci

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the workflow location relative to the repository root.
const DefaultPath = ".github/workflows/ci.yml"

// Workflow is the subset of a GitHub Actions workflow the checks need.
type Workflow struct {
	Name string            `yaml:"name"`
	On   Triggers          `yaml:"on"`
	Env  map[string]string `yaml:"env"`
	Jobs map[string]*Job   `yaml:"jobs"`
}

// Triggers lists the events that start the workflow.
type Triggers struct {
	Push        *BranchFilter `yaml:"push"`
	PullRequest *BranchFilter `yaml:"pull_request"`
}

// BranchFilter restricts a trigger to branches.
type BranchFilter struct {
	Branches []string `yaml:"branches"`
}

// Job is one workflow job; its steps run sequentially.
type Job struct {
	RunsOn string  `yaml:"runs-on"`
	Steps  []*Step `yaml:"steps"`
}

// Step is a single job step, either a shell command or an action.
type Step struct {
	Name string            `yaml:"name"`
	Uses string            `yaml:"uses"`
	Run  string            `yaml:"run"`
	With map[string]string `yaml:"with"`
}

// Expectations describe what the workflow must agree with.
type Expectations struct {
	Branch   string
	ColorVar string
	Target   string
	Binary   string
}

// DefaultExpectations returns the values this repository ships with.
func DefaultExpectations() Expectations {
	return Expectations{
		Branch:   "main",
		ColorVar: "THINGAMAJIG_COLOR",
		Target:   "x86_64-unknown-linux-musl",
		Binary:   "thingamajig",
	}
}

// ParseWorkflow decodes workflow YAML.
func ParseWorkflow(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}
	return &wf, nil
}

// LoadWorkflow reads and decodes the workflow at path.
func LoadWorkflow(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow: %w", err)
	}
	return ParseWorkflow(data)
}

// stage identifies one of the required pipeline steps.
type stage int

const (
	stageCheckout stage = iota
	stageBuild
	stageTest
	stageCross
	stageUpload
)

var stageNames = [...]string{"checkout", "build", "test", "cross-compile", "upload"}

func (s stage) String() string {
	return stageNames[s]
}

// classify reports which required stage a step fulfils, if any.
func classify(st *Step) (stage, bool) {
	uses := strings.ToLower(st.Uses)
	switch {
	case strings.HasPrefix(uses, "actions/checkout@"):
		return stageCheckout, true
	case strings.HasPrefix(uses, "actions/upload-artifact@"):
		return stageUpload, true
	case strings.Contains(st.Run, "go build ./..."):
		return stageBuild, true
	case strings.Contains(st.Run, "go test ./..."):
		return stageTest, true
	case uses != "" && !strings.HasPrefix(uses, "actions/") && mentionsTarget(st):
		return stageCross, true
	}
	return 0, false
}

func mentionsTarget(st *Step) bool {
	if strings.Contains(st.Run, "TARGET") {
		return true
	}
	for _, v := range st.With {
		if strings.Contains(v, "TARGET") {
			return true
		}
	}
	return false
}

// Validate checks the workflow and returns every problem found, joined.
func (w *Workflow) Validate(exp Expectations) error {
	var errs []error

	if !w.On.Push.includes(exp.Branch) {
		errs = append(errs, fmt.Errorf("push trigger must include branch %q", exp.Branch))
	}
	if !w.On.PullRequest.includes(exp.Branch) {
		errs = append(errs, fmt.Errorf("pull_request trigger must include branch %q", exp.Branch))
	}

	if _, ok := w.Env[exp.ColorVar]; !ok {
		errs = append(errs, fmt.Errorf("env %s is not set", exp.ColorVar))
	}
	for key, want := range map[string]string{"TARGET": exp.Target, "BINARY": exp.Binary} {
		if got := w.Env[key]; got != want {
			errs = append(errs, fmt.Errorf("env %s = %q, want %q", key, got, want))
		}
	}

	if len(w.Jobs) != 1 {
		errs = append(errs, fmt.Errorf("workflow must define exactly one job, found %d", len(w.Jobs)))
		return errors.Join(errs...)
	}
	for name, job := range w.Jobs {
		errs = append(errs, w.validateJob(name, job, exp)...)
	}
	return errors.Join(errs...)
}

func (w *Workflow) validateJob(name string, job *Job, exp Expectations) []error {
	var errs []error
	if job == nil || len(job.Steps) == 0 {
		return []error{fmt.Errorf("job %q has no steps", name)}
	}

	found := make(map[stage]*Step)
	next := stageCheckout
	for i, st := range job.Steps {
		sg, ok := classify(st)
		if !ok {
			continue
		}
		if _, dup := found[sg]; dup {
			errs = append(errs, fmt.Errorf("job %q step %d: duplicate %s step", name, i+1, sg))
			continue
		}
		if sg < next {
			errs = append(errs, fmt.Errorf("job %q step %d: %s step runs after %s", name, i+1, sg, next-1))
		}
		found[sg] = st
		if sg >= next {
			next = sg + 1
		}
	}
	for sg := stageCheckout; sg <= stageUpload; sg++ {
		if found[sg] == nil {
			errs = append(errs, fmt.Errorf("job %q is missing the %s step", name, sg))
		}
	}

	want := ArtifactPath(exp)
	if up := found[stageUpload]; up != nil {
		if got := w.Expand(up.With["path"]); got != want {
			errs = append(errs, fmt.Errorf("uploaded artifact path %q, want %q", got, want))
		}
	}
	if cross := found[stageCross]; cross != nil {
		out := w.Expand(cross.Run + "\n" + cross.With["run"])
		if !strings.Contains(out, want) {
			errs = append(errs, fmt.Errorf("cross-compile step does not produce %s", want))
		}
		if !strings.Contains(out, "./cmd/"+exp.Binary) {
			errs = append(errs, fmt.Errorf("cross-compile step does not build ./cmd/%s", exp.Binary))
		}
	}
	return errs
}

func (f *BranchFilter) includes(branch string) bool {
	if f == nil {
		return false
	}
	for _, b := range f.Branches {
		if b == branch {
			return true
		}
	}
	return false
}

// ArtifactPath is the file the workflow is expected to publish.
func ArtifactPath(exp Expectations) string {
	return "dist/" + exp.Binary + "-" + exp.Target
}

var envRef = regexp.MustCompile(`\$\{\{\s*env\.([A-Za-z_][A-Za-z0-9_]*)\s*\}\}|\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Expand substitutes workflow-level env references in both the expression
// form ${{ env.NAME }} and the shell form ${NAME}. Unknown names are kept.
func (w *Workflow) Expand(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(m string) string {
		sub := envRef.FindStringSubmatch(m)
		name := sub[1]
		if name == "" {
			name = sub[2]
		}
		if v, ok := w.Env[name]; ok {
			return v
		}
		return m
	})
}

// CheckLayout verifies the repository at root contains the main package the
// workflow builds.
func CheckLayout(root string, exp Expectations) error {
	main := filepath.Join(root, "cmd", exp.Binary, "main.go")
	if _, err := os.Stat(main); err != nil {
		return fmt.Errorf("binary %q has no main package: %w", exp.Binary, err)
	}
	return nil
}

// FindRoot walks up from dir to the directory holding go.mod.
func FindRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found in any parent directory")
		}
		dir = parent
	}
}
