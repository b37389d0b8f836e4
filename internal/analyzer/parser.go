package analyzer

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/standardbeagle/lci-cached-nav/internal/errs"
)

// languageFor resolves a *sitter.Language for the given canonical
// language name, mirroring the teacher's parseFile switch but covering
// every grammar the module's go.mod carries.
func languageFor(language string) (*sitter.Language, error) {
	switch language {
	case "go":
		return sitter.NewLanguage(tree_sitter_go.Language()), nil
	case "javascript":
		return sitter.NewLanguage(tree_sitter_javascript.Language()), nil
	case "typescript":
		return sitter.NewLanguage(typescript.LanguageTypescript()), nil
	case "python":
		return sitter.NewLanguage(tree_sitter_python.Language()), nil
	case "csharp":
		return sitter.NewLanguage(tree_sitter_csharp.Language()), nil
	case "php":
		return sitter.NewLanguage(tree_sitter_php.LanguagePHP()), nil
	case "rust":
		return sitter.NewLanguage(tree_sitter_rust.Language()), nil
	case "java":
		return sitter.NewLanguage(tree_sitter_java.Language()), nil
	case "cpp":
		return sitter.NewLanguage(tree_sitter_cpp.Language()), nil
	default:
		return nil, errs.NewAnalyzerError(errs.KindUnsupportedLang, "", "parse", errParserUnavailable(language))
	}
}

// parse runs a fresh *sitter.Parser over content for language and
// returns the resulting tree. The caller owns the returned tree and
// must call tree.Close() when done with it.
func parse(language string, content []byte) (*sitter.Tree, error) {
	lang, err := languageFor(language)
	if err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(lang); err != nil {
		return nil, errs.NewAnalyzerError(errs.KindParserNotAvailable, "", "set_language", err)
	}

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, errs.NewAnalyzerError(errs.KindParseError, "", "parse", errParseFailed)
	}
	return tree, nil
}
