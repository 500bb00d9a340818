package source

import "github.com/gobwas/glob"

// globMatcher adapts a compiled gobwas/glob.Glob to the Matcher interface.
type globMatcher struct {
	g glob.Glob
}

func (m globMatcher) Match(path string) bool {
	return m.g.Match(path)
}

// CompileExcludes compiles a set of glob patterns (as accepted by
// config.WatcherConfig.ExcludePatterns) into Matchers for Config.ExcludeGlobs.
func CompileExcludes(patterns []string) ([]Matcher, error) {
	out := make([]Matcher, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}
		out = append(out, globMatcher{g: g})
	}
	return out, nil
}
