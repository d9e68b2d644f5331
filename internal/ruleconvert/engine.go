package ruleconvert

// Logger receives per-source warnings. *logrus.Logger satisfies it.
type Logger interface {
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...any) {}

// Settings is the read-only view of global options used during a conversion.
type Settings struct {
	MaxAllowedRules      int
	SingBoxAddClashModes bool
}

// Emitter appends converted sources to a document of type D.
type Emitter[D any] interface {
	Emit(doc D, sources []RuleSource)
}

type engine struct {
	settings Settings
	log      Logger
}

func newEngine(settings Settings, log Logger) engine {
	if log == nil {
		log = nopLogger{}
	}
	return engine{settings: settings, log: log}
}

func (e engine) budget() *Budget {
	return NewBudget(e.settings.MaxAllowedRules)
}

// resolve returns the source's content, warning when it is unavailable.
func (e engine) resolve(src RuleSource) (string, bool) {
	content := src.content()
	if content == "" {
		e.log.Warnf("[Ruleset] failed to fetch ruleset or ruleset is empty: '%s'", src.Path)
		return "", false
	}
	return content, true
}
