package formula

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/cbtap/cbtap/internal/platform"
)

// Lua schema field names.
const (
	luaGlobalFormula = "formula"
	luaFieldName     = "name"
	luaFieldDesc     = "desc"
	luaFieldHomepage = "homepage"
	luaFieldLicense  = "license"
	luaFieldVersion  = "version"
	luaFieldArtifact = "artifacts"
	luaFieldURL      = "url"
	luaFieldSHA256   = "sha256"
	luaFieldSig      = "signature"
	luaFieldSignKey  = "signing_key"
	luaFieldInstall  = "install"
	luaFieldBin      = "bin"
	luaFieldLinks    = "links"
	luaFieldTest     = "test"
	luaFieldArgs     = "args"
	luaFieldExpect   = "expect"
)

// ParseError represents a formula that could not be evaluated or is invalid.
type ParseError struct {
	Source  string // file path or other origin
	Message string // user-facing summary
	Detail  string // raw Lua or validation detail
	Err     error
}

func (e *ParseError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: %s: %s", e.Source, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FormatError renders err for display. Without verbose, Lua stack
// tracebacks are cut off.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		return err.Error()
	}
	if verbose {
		return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
	}
	detail := parseErr.Detail
	if idx := strings.Index(detail, "stack traceback"); idx > 0 {
		detail = strings.TrimSpace(detail[:idx])
	}
	return fmt.Sprintf("%s: %s", parseErr.Message, detail)
}

// Parser evaluates formula files against a platform description.
type Parser struct {
	info *platform.Info
}

// NewParser creates a parser that exposes info as the `platform` table.
// info may be nil, in which case formulas see only the helper functions.
func NewParser(info *platform.Info) *Parser {
	return &Parser{info: info}
}

// ParseFile reads and parses a formula file.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Formula, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read formula: %w", err)
	}
	return p.Parse(ctx, path, string(data))
}

// Parse evaluates src and extracts the formula. source labels errors.
func (p *Parser) Parse(ctx context.Context, source, src string) (*Formula, error) {
	L := newSandboxedVM()
	defer L.Close()

	L.SetContext(ctx)
	platform.InjectPlatformTable(L, p.info)

	if err := L.DoString(src); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("parse %s: %w", source, ctx.Err())
		}
		return nil, &ParseError{Source: source, Message: "Lua error", Detail: err.Error(), Err: err}
	}

	f, err := extractFormula(L)
	if err != nil {
		return nil, &ParseError{Source: source, Message: "invalid formula", Detail: err.Error(), Err: err}
	}
	f.Source = source

	if err := f.Validate(); err != nil {
		return nil, &ParseError{Source: source, Message: "formula validation failed", Detail: err.Error(), Err: err}
	}
	return f, nil
}

func extractFormula(L *lua.LState) (*Formula, error) {
	global := L.GetGlobal(luaGlobalFormula)
	table, ok := global.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("missing or invalid %q table: got %s", luaGlobalFormula, global.Type())
	}

	f := &Formula{
		Name:       stringField(table, luaFieldName),
		Desc:       stringField(table, luaFieldDesc),
		Homepage:   stringField(table, luaFieldHomepage),
		License:    stringField(table, luaFieldLicense),
		Version:    stringField(table, luaFieldVersion),
		SigningKey: stringField(table, luaFieldSignKey),
	}

	artifacts, err := extractArtifacts(table.RawGetString(luaFieldArtifact))
	if err != nil {
		return nil, err
	}
	f.Artifacts = artifacts

	if install, ok := table.RawGetString(luaFieldInstall).(*lua.LTable); ok {
		f.Bin, err = stringList(install.RawGetString(luaFieldBin), "install.bin")
		if err != nil {
			return nil, err
		}
		f.Links, err = stringMap(install.RawGetString(luaFieldLinks), "install.links")
		if err != nil {
			return nil, err
		}
	}

	if test, ok := table.RawGetString(luaFieldTest).(*lua.LTable); ok {
		f.Test.Args, err = stringList(test.RawGetString(luaFieldArgs), "test.args")
		if err != nil {
			return nil, err
		}
		f.Test.Expect = stringField(test, luaFieldExpect)
	}
	if len(f.Test.Args) == 0 {
		f.Test.Args = append([]string(nil), DefaultTestArgs...)
	}
	if f.Test.Expect == "" {
		f.Test.Expect = f.Version
	}

	return f, nil
}

func extractArtifacts(v lua.LValue) (map[platform.Key]Artifact, error) {
	artifacts := make(map[platform.Key]Artifact)
	if v == lua.LNil {
		return artifacts, nil
	}

	table, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%s: expected table, got %s", luaFieldArtifact, v.Type())
	}

	var firstErr error
	table.ForEach(func(k, value lua.LValue) {
		if firstErr != nil {
			return
		}
		// platform.when(...) yields nil for other platforms.
		if value == lua.LNil {
			return
		}
		keyStr, ok := k.(lua.LString)
		if !ok {
			firstErr = fmt.Errorf("%s: keys must be platform strings, got %s", luaFieldArtifact, k.Type())
			return
		}
		key := platform.Key(keyStr)
		if !key.Valid() {
			firstErr = fmt.Errorf("%s: unknown platform key %q", luaFieldArtifact, string(keyStr))
			return
		}
		entry, ok := value.(*lua.LTable)
		if !ok {
			firstErr = fmt.Errorf("%s.%s: expected table, got %s", luaFieldArtifact, key, value.Type())
			return
		}
		artifacts[key] = Artifact{
			URL:          stringField(entry, luaFieldURL),
			SHA256:       strings.ToLower(strings.TrimSpace(stringField(entry, luaFieldSHA256))),
			SignatureURL: stringField(entry, luaFieldSig),
		}
	})

	return artifacts, firstErr
}

func stringField(t *lua.LTable, name string) string {
	if s, ok := t.RawGetString(name).(lua.LString); ok {
		return string(s)
	}
	return ""
}

// stringList accepts a single string or an array of strings.
func stringList(v lua.LValue, field string) ([]string, error) {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LString:
		return []string{string(val)}, nil
	case *lua.LTable:
		out := make([]string, 0, val.Len())
		for i := 1; i <= val.Len(); i++ {
			s, ok := val.RawGetInt(i).(lua.LString)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: expected string", field, i)
			}
			out = append(out, string(s))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: expected string or list, got %s", field, v.Type())
	}
}

func stringMap(v lua.LValue, field string) (map[string]string, error) {
	out := make(map[string]string)
	if v == lua.LNil {
		return out, nil
	}

	table, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%s: expected table, got %s", field, v.Type())
	}

	var firstErr error
	table.ForEach(func(k, value lua.LValue) {
		ks, kok := k.(lua.LString)
		vs, vok := value.(lua.LString)
		if (!kok || !vok) && firstErr == nil {
			firstErr = fmt.Errorf("%s: entries must be name = \"target\" strings", field)
			return
		}
		out[string(ks)] = string(vs)
	})
	return out, firstErr
}
