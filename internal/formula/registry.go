package formula

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
)

// FormulaDir is the directory inside a tap that holds formula files.
const FormulaDir = "Formula"

// Source is a named tree of formulas, such as the embedded builtin tap or
// a cloned tap directory.
type Source struct {
	Name string
	FS   fs.FS
}

// Registry indexes formulas by name across sources.
type Registry struct {
	parser   *Parser
	logger   *slog.Logger
	formulas map[string]*Formula
}

// NewRegistry creates an empty registry. A nil logger discards output.
func NewRegistry(parser *Parser, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		parser:   parser,
		logger:   logger,
		formulas: make(map[string]*Formula),
	}
}

// Load parses every Formula/*.lua file in src. A formula already loaded
// from an earlier source is replaced, so later taps shadow earlier ones.
func (r *Registry) Load(ctx context.Context, src Source) error {
	files, err := fs.Glob(src.FS, path.Join(FormulaDir, "*.lua"))
	if err != nil {
		return fmt.Errorf("list formulas in %s: %w", src.Name, err)
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(src.FS, file)
		if err != nil {
			return fmt.Errorf("read %s/%s: %w", src.Name, file, err)
		}

		f, err := r.parser.Parse(ctx, src.Name+":"+file, string(data))
		if err != nil {
			return err
		}

		if stem := strings.TrimSuffix(path.Base(file), ".lua"); stem != f.Name {
			return &ParseError{
				Source:  src.Name + ":" + file,
				Message: "formula name does not match file name",
				Detail:  fmt.Sprintf("file declares %q", f.Name),
			}
		}
		f.Source = src.Name

		if prev, ok := r.formulas[f.Name]; ok {
			r.logger.Debug("formula shadowed",
				"formula", f.Name,
				"previous_source", prev.Source,
				"source", src.Name)
		}
		r.formulas[f.Name] = f
	}

	r.logger.Debug("loaded formulas", "source", src.Name, "count", len(files))
	return nil
}

// Lookup returns the formula named name, e.g. "codebuddy-code" or
// "codebuddy-code@2.22.0".
func (r *Registry) Lookup(name string) (*Formula, error) {
	if f, ok := r.formulas[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrFormulaNotFound, name)
}

// All returns every formula sorted by name.
func (r *Registry) All() []*Formula {
	out := make([]*Formula, 0, len(r.formulas))
	for _, f := range r.formulas {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Family returns the formula and all pinned versions sharing its base name.
func (r *Registry) Family(base string) []*Formula {
	var out []*Formula
	for _, f := range r.All() {
		if f.BaseName() == base {
			out = append(out, f)
		}
	}
	return out
}
