// Package version хранит сведения о сборке, которые подставляются через -ldflags.
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info returns version information populated via -ldflags.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// GetCommit возвращает хэш коммита сборки.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }

// String форматирует сведения о сборке для логов и `storefront version`.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
