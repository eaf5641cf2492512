// Package version хранит сведения о сборке, подставляемые через -ldflags.
package version

import "fmt"

var (
	version = "dev"
	commit  = "none"
	builtAt = "unknown"
)

// Build возвращает версию, commit и время сборки по отдельности.
func Build() (string, string, string) {
	return version, commit, builtAt
}

// String форматирует сведения о сборке одной строкой для логов и health-ответов.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", version, commit, builtAt)
}
