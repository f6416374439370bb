// Package pattern loads the TOML-defined prompt templates that back
// each of the fixed pattern ids in internal/types, following the
// teacher's internal/formula/parser.go search-path + cache convention.
package pattern

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"

	"github.com/chatvault/chatvault/internal/types"
)

// Ext is the file extension a pattern definition is stored under.
const Ext = ".pattern.toml"

// Definition is one pattern's prompt template, decoded from TOML.
type Definition struct {
	Pattern     string `toml:"pattern"`
	Description string `toml:"description"`
	Prompt      string `toml:"prompt"`
}

// Catalog loads and caches pattern definitions from a list of search
// directories, checked in order (project-local overrides before
// built-in defaults), mirroring the teacher's Parser.searchPaths /
// Parser.cache fields.
//
// Catalog is NOT safe for concurrent use without external
// synchronization, matching the teacher's own documented constraint on
// formula.Parser.
type Catalog struct {
	searchPaths []string
	cache       map[types.Pattern]*Definition
}

// NewCatalog creates a Catalog over searchPaths, falling back to
// DefaultSearchPaths when none are given.
func NewCatalog(searchPaths ...string) *Catalog {
	paths := searchPaths
	if len(paths) == 0 {
		paths = DefaultSearchPaths()
	}
	return &Catalog{searchPaths: paths, cache: make(map[types.Pattern]*Definition)}
}

// DefaultSearchPaths returns the project-local and user-level pattern
// directories, in lookup order.
func DefaultSearchPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".chatvault", "patterns"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".chatvault", "patterns"))
	}
	return paths
}

// Load returns the Definition for pattern, reading it from the first
// search path directory that has a matching file.
func (c *Catalog) Load(pattern types.Pattern) (*Definition, error) {
	if def, ok := c.cache[pattern]; ok {
		return def, nil
	}

	for _, dir := range c.searchPaths {
		path := filepath.Join(dir, string(pattern)+Ext)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var def Definition
		if err := toml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("pattern %q: parse %s: %w", pattern, path, err)
		}
		if def.Pattern == "" {
			def.Pattern = string(pattern)
		}
		c.cache[pattern] = &def
		return &def, nil
	}

	if def, ok := builtinDefinitions[pattern]; ok {
		c.cache[pattern] = def
		return def, nil
	}

	return nil, fmt.Errorf("pattern %q: no definition found in %v", pattern, c.searchPaths)
}

// varPattern matches {{variable}} placeholders in a prompt template.
var varPattern = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)

// Render substitutes {{variable}} placeholders in def.Prompt, leaving
// any unresolved reference untouched rather than erroring — a worker
// producing a slightly malformed prompt is better than one that refuses
// to run.
func Render(def *Definition, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(def.Prompt, func(match string) string {
		name := match[2 : len(match)-2]
		if val, ok := vars[name]; ok {
			return val
		}
		return match
	})
}

// builtinDefinitions ships a usable prompt for every fixed pattern id so
// a fresh install works before the user authors any .pattern.toml files.
var builtinDefinitions = map[types.Pattern]*Definition{
	types.PatternExtractWisdom: {
		Pattern:     string(types.PatternExtractWisdom),
		Description: "Extract the most valuable ideas, quotes, and recommendations.",
		Prompt: "Extract the key insights, surprising ideas, and actionable recommendations " +
			"from the following conversation. Organize them under clear headings.\n\n{{content}}",
	},
	types.PatternSummarize: {
		Pattern:     string(types.PatternSummarize),
		Description: "Produce a concise summary.",
		Prompt:      "Summarize the following conversation in a few clear paragraphs.\n\n{{content}}",
	},
	types.PatternAnalyzeDebate: {
		Pattern:     string(types.PatternAnalyzeDebate),
		Description: "Identify the positions and arguments of each participant.",
		Prompt: "Identify each participant's position, their strongest arguments, and any " +
			"unresolved disagreement in the following conversation.\n\n{{content}}",
	},
	types.PatternRateContent: {
		Pattern:     string(types.PatternRateContent),
		Description: "Rate the quality and usefulness of the content on a fixed scale.",
		Prompt: "Rate the following conversation from 1-10 on clarity, novelty, and practical " +
			"usefulness, with one sentence of justification per score.\n\n{{content}}",
	},
	types.PatternCreateReportFinding: {
		Pattern:     string(types.PatternCreateReportFinding),
		Description: "Write a single structured finding for a report.",
		Prompt: "Write one structured finding (title, summary, evidence, recommendation) based on " +
			"the following conversation.\n\n{{content}}",
	},
	types.PatternAnalyzePaper: {
		Pattern:     string(types.PatternAnalyzePaper),
		Description: "Summarize and critique the research discussed across a project.",
		Prompt: "Summarize the research question, method, and findings discussed across this " +
			"project, and note any weaknesses or open questions.\n\n{{content}}",
	},
}

// ensure every known pattern constant has a builtin definition; caught at
// init so a future pattern addition can't silently ship without one.
func init() {
	for _, p := range types.ConversationPatterns {
		if _, ok := builtinDefinitions[p]; !ok {
			panic(fmt.Sprintf("pattern: no builtin definition for conversation pattern %q", p))
		}
	}
	for _, p := range types.ProjectPatterns {
		if _, ok := builtinDefinitions[p]; !ok {
			panic(fmt.Sprintf("pattern: no builtin definition for project pattern %q", p))
		}
	}
}
