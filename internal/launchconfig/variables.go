package launchconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// fileVariables are the ${name} references lodeb can expand without a
// namespace. ${command:...} and other editor-only references are not among
// them.
var fileVariables = map[string]func(c *ResolutionContext) (string, error){
	"workspaceFolder": func(c *ResolutionContext) (string, error) { return c.WorkspaceFolder, nil },
	"workspaceRoot":   func(c *ResolutionContext) (string, error) { return c.WorkspaceFolder, nil },
	"workspaceFolderBasename": func(c *ResolutionContext) (string, error) {
		return filepath.Base(c.WorkspaceFolder), nil
	},
	"file":        func(c *ResolutionContext) (string, error) { return c.CurrentFile, nil },
	"fileDirname": func(c *ResolutionContext) (string, error) { return filepath.Dir(c.CurrentFile), nil },
	"fileBasename": func(c *ResolutionContext) (string, error) {
		return filepath.Base(c.CurrentFile), nil
	},
	"fileExtname": func(c *ResolutionContext) (string, error) { return filepath.Ext(c.CurrentFile), nil },
	"fileBasenameNoExtension": func(c *ResolutionContext) (string, error) {
		base := filepath.Base(c.CurrentFile)
		return base[:len(base)-len(filepath.Ext(base))], nil
	},
	"relativeFile": func(c *ResolutionContext) (string, error) {
		if c.WorkspaceFolder == "" || c.CurrentFile == "" {
			return c.CurrentFile, nil
		}
		rel, err := filepath.Rel(c.WorkspaceFolder, c.CurrentFile)
		if err != nil {
			return c.CurrentFile, nil
		}
		return rel, nil
	},
	"userHome": func(*ResolutionContext) (string, error) { return os.UserHomeDir() },
	"cwd":      func(*ResolutionContext) (string, error) { return os.Getwd() },
	"pathSeparator": func(*ResolutionContext) (string, error) {
		return string(os.PathSeparator), nil
	},
}

// ResolveVariables expands every ${...} reference in text. A reference that
// cannot be expanded stays as written and the first such failure is returned.
func ResolveVariables(text string, ctx *ResolutionContext) (string, error) {
	if ctx == nil {
		ctx = &ResolutionContext{}
	}

	var sb strings.Builder
	var firstErr error
	for {
		start := strings.Index(text, "${")
		if start < 0 {
			break
		}
		end := strings.IndexByte(text[start:], '}')
		if end < 0 {
			break
		}
		end += start

		sb.WriteString(text[:start])
		value, err := ctx.lookup(text[start+2 : end])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			value = text[start : end+1]
		}
		sb.WriteString(value)
		text = text[end+1:]
	}
	sb.WriteString(text)

	return sb.String(), firstErr
}

// lookup expands one reference, the text between "${" and "}"
func (c *ResolutionContext) lookup(ref string) (string, error) {
	if ns, name, ok := strings.Cut(ref, ":"); ok {
		switch ns {
		case "env":
			if v, ok := c.EnvOverrides[name]; ok {
				return v, nil
			}
			return os.Getenv(name), nil
		case "input":
			if v, ok := c.InputValues[name]; ok {
				return v, nil
			}
			return "", fmt.Errorf("no value for ${input:%s}; pass it in inputValues or give the input a default", name)
		}
	} else if fn, ok := fileVariables[ref]; ok {
		v, err := fn(c)
		if err != nil {
			return "", fmt.Errorf("failed to expand ${%s}: %w", ref, err)
		}
		return v, nil
	}
	return "", fmt.Errorf("unsupported variable ${%s}", ref)
}

// ResolveStringSlice expands the references in every element
func ResolveStringSlice(values []string, ctx *ResolutionContext) ([]string, error) {
	out := make([]string, 0, len(values))
	for i, v := range values {
		s, err := ResolveVariables(v, ctx)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// ResolveStringMap expands the references in every value; keys are kept as is
func ResolveStringMap(values map[string]string, ctx *ResolutionContext) (map[string]string, error) {
	if values == nil {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		s, err := ResolveVariables(v, ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = s
	}
	return out, nil
}
