package indexmgr

import "path/filepath"

// LanguageFromExt maps a file extension to a canonical language name,
// adapted from the teacher's parser.GetLanguageFromExtension, trimmed
// to the nine grammars this module's Analyzer Manager actually
// supports (the teacher also recognized kotlin/zig, for which this
// module carries no grammar). Exported so the Query Front-End can
// resolve a file's language the same way discovery does, without a
// second copy of the extension table.
func LanguageFromExt(path string) string {
	switch filepath.Ext(path) {
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".rs":
		return "rust"
	case ".cpp", ".cc", ".cxx", ".c", ".h", ".hpp":
		return "cpp"
	case ".java":
		return "java"
	case ".cs":
		return "csharp"
	case ".php":
		return "php"
	default:
		return ""
	}
}
