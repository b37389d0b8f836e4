package analyzer

import "fmt"

var errParseFailed = fmt.Errorf("tree-sitter returned no tree")

func errParserUnavailable(language string) error {
	return fmt.Errorf("no parser registered for language %q", language)
}
