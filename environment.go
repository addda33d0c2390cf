package chunkeval

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// minPythonVersion is the oldest interpreter the shim protocol supports.
var minPythonVersion = Version{Major: 3, Minor: 8, Patch: -1}

// Environment is a Python installation the embedded runtime is built on: the
// interpreter executable, its pip, and their versions. It is discovery state
// only; the live interpreter handle is PythonRuntime.
type Environment struct {
	// PythonPath is the full path to the Python executable.
	PythonPath string

	// PipPath is the full path to the pip executable.
	PipPath string

	// PythonVersion is the detected interpreter version.
	PythonVersion Version

	// PipVersion is the detected pip version.
	PipVersion Version
}

// NewSystemEnvironment locates the system Python installation.
//
// On Unix it searches PATH for "python3" then "python". On Windows it goes
// through the "py" launcher first and falls back to "python", skipping the
// Microsoft Store placeholder executables.
func NewSystemEnvironment() (*Environment, error) {
	pythonPath := ""
	if runtime.GOOS == "windows" {
		wout, err := exec.Command("where", "py").Output()
		if err == nil {
			pythonPath = firstLine(string(wout))
		}
		if pythonPath == "" {
			wout, err = exec.Command("where", "python").Output()
			if err != nil {
				return nil, fmt.Errorf("python not found: %v", err)
			}
			for _, p := range strings.Split(string(wout), "\n") {
				p = strings.TrimSpace(p)
				if p != "" && !strings.Contains(p, "Microsoft\\WindowsApps") {
					pythonPath = p
					break
				}
			}
		}
		if pythonPath == "" {
			return nil, fmt.Errorf("no usable python installation found")
		}
	} else {
		var err error
		pythonPath, err = exec.LookPath("python3")
		if err != nil {
			pythonPath, err = exec.LookPath("python")
			if err != nil {
				return nil, fmt.Errorf("python not found: %v", err)
			}
		}
	}

	return NewEnvironmentFromExecutable(pythonPath)
}

// NewEnvironmentFromExecutable builds an Environment around a specific Python
// executable, querying it for version information and locating its pip.
func NewEnvironmentFromExecutable(pythonPath string) (*Environment, error) {
	env := &Environment{PythonPath: pythonPath}

	out, err := exec.Command(pythonPath, "--version").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("error running python --version: %v", err)
	}
	env.PythonVersion, err = ParsePythonVersion(strings.TrimSpace(string(out)))
	if err != nil {
		return nil, fmt.Errorf("error parsing Python version: %v", err)
	}
	if env.PythonVersion.Compare(minPythonVersion) < 0 {
		return nil, fmt.Errorf("python %s is too old, need %s or newer", env.PythonVersion.String(), minPythonVersion.String())
	}

	pipCmd := "pip3"
	if runtime.GOOS == "windows" {
		pipCmd = "pip3.exe"
	}
	env.PipPath, err = exec.LookPath(pipCmd)
	if err != nil {
		pipCmd = "pip"
		if runtime.GOOS == "windows" {
			pipCmd = "pip.exe"
		}
		env.PipPath, err = exec.LookPath(pipCmd)
		if err != nil {
			return nil, fmt.Errorf("pip not found: %v", err)
		}
	}

	out, err = exec.Command(env.PipPath, "--version").Output()
	if err != nil {
		return nil, fmt.Errorf("error running pip --version: %v", err)
	}
	env.PipVersion, err = ParsePipVersion(strings.TrimSpace(string(out)))
	if err != nil {
		return nil, fmt.Errorf("error parsing pip version: %v", err)
	}

	return env, nil
}

// pipInstall installs the named packages with a single batched pip invocation.
// The error includes pip's stderr for diagnosis.
func (env *Environment) pipInstall(ctx context.Context, packages []string) error {
	args := append([]string{"install", "--no-warn-script-location"}, packages...)
	cmd := exec.CommandContext(ctx, env.PipPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pip install failed: %v, stderr: %s", err, stderr.String())
	}
	return nil
}

// importable probes whether a package can be imported, without running its
// module-level code, by asking find_spec in a throwaway interpreter. The live
// runtime performs the same probe in-process; this variant is used before the
// shim is up.
func (env *Environment) importable(ctx context.Context, root string) (bool, error) {
	probe := fmt.Sprintf("import importlib.util; print('y' if importlib.util.find_spec(%q) else 'n')", root)
	out, err := exec.CommandContext(ctx, env.PythonPath, "-c", probe).Output()
	if err != nil {
		return false, fmt.Errorf("probing %s: %v", root, err)
	}
	return strings.TrimSpace(string(out)) == "y", nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
