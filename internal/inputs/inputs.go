// Package inputs reads action inputs from INPUT_* environment variables and
// writes step outputs, following the GitHub Actions runner conventions.
package inputs

import (
	"fmt"
	"os"
	"strings"

	"treecommit/internal/commit"
	"treecommit/internal/errors"

	"github.com/google/uuid"
)

const (
	InputRepository = "repository"
	InputSlug       = "github-repository"
	InputReference  = "ref"
	InputMessage    = "message"
	InputInclude    = "include"
	InputExclude    = "exclude"
	InputSource     = "source"
	InputTarget     = "target"
	InputFlatten    = "flatten"
	InputForce      = "force"
	InputAlways     = "always"
	InputDryRun     = "dry-run"
)

type Reader struct {
	getenv func(string) string
}

// FromEnv reads inputs from the process environment.
func FromEnv() *Reader {
	return New(os.Getenv)
}

func New(getenv func(string) string) *Reader {
	return &Reader{getenv: getenv}
}

func envName(name string) string {
	return "INPUT_" + strings.ToUpper(strings.ReplaceAll(name, " ", "_"))
}

// aliases are the names earlier workflows used for the same inputs.
var aliases = map[string]string{
	InputReference: "github-reference",
}

// Get returns the trimmed input and whether it was set to something
// non-empty.
func (r *Reader) Get(name string) (string, bool) {
	v := strings.TrimSpace(r.getenv(envName(name)))
	if v == "" && aliases[name] != "" {
		v = strings.TrimSpace(r.getenv(envName(aliases[name])))
	}
	return v, v != ""
}

func (r *Reader) Required(name string) (string, error) {
	v, ok := r.Get(name)
	if !ok {
		return "", errors.MissingConfiguration(name)
	}
	return v, nil
}

// Bool accepts the YAML 1.2 core schema booleans. An unset input is false.
func (r *Reader) Bool(name string) (bool, error) {
	v, ok := r.Get(name)
	if !ok {
		return false, nil
	}
	switch v {
	case "true", "True", "TRUE":
		return true, nil
	case "false", "False", "FALSE":
		return false, nil
	}
	return false, fmt.Errorf("input %s: %q is not a boolean (true|True|TRUE|false|False|FALSE)", name, v)
}

// Multiline splits an input into trimmed, non-empty lines.
func (r *Reader) Multiline(name string) []string {
	v, _ := r.Get(name)
	var lines []string
	for _, line := range strings.Split(v, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Action is everything one invocation needs.
type Action struct {
	// Repository is empty when the workspace is the repository.
	Repository string
	// Slug is the owner/name the workflow runs for. It never names a
	// path; the checkout in the workspace is the repository.
	Slug      string
	Reference string
	Options   commit.Options
}

func (r *Reader) Action() (*Action, error) {
	message, err := r.Required(InputMessage)
	if err != nil {
		return nil, err
	}

	a := &Action{
		Reference: "HEAD",
		Options: commit.Options{
			Message: message,
			Include: r.Multiline(InputInclude),
			Exclude: r.Multiline(InputExclude),
		},
	}
	a.Repository, _ = r.Get(InputRepository)
	a.Slug, _ = r.Get(InputSlug)
	if ref, ok := r.Get(InputReference); ok {
		a.Reference = ref
	}
	a.Options.Source, _ = r.Get(InputSource)
	a.Options.Target, _ = r.Get(InputTarget)

	flags := []struct {
		name string
		dst  *bool
	}{
		{InputFlatten, &a.Options.Flatten},
		{InputForce, &a.Options.Force},
		{InputAlways, &a.Options.Always},
		{InputDryRun, &a.Options.DryRun},
	}
	for _, f := range flags {
		if *f.dst, err = r.Bool(f.name); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Workspace returns GITHUB_WORKSPACE, falling back to the working directory.
func (r *Reader) Workspace() (string, error) {
	if ws := r.getenv("GITHUB_WORKSPACE"); ws != "" {
		return ws, nil
	}
	return os.Getwd()
}

// SetOutput appends name=value to the file named by GITHUB_OUTPUT. Without
// it the legacy workflow command is printed instead.
func (r *Reader) SetOutput(name, value string) error {
	path := r.getenv("GITHUB_OUTPUT")
	if path == "" {
		_, err := fmt.Fprintf(os.Stdout, "::set-output name=%s::%s\n", name, value)
		return err
	}

	delimiter := "ghadelimiter_" + uuid.New().String()
	if strings.Contains(name, delimiter) || strings.Contains(value, delimiter) {
		return fmt.Errorf("output %s contains the delimiter", name)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening output file: %w", err)
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%s<<%s\n%s\n%s\n", name, delimiter, value, delimiter)
	return err
}
