package analysis

import (
	"path/filepath"
	"strings"

	"github.com/fxsearch/fxs/internal/types"
)

var extLanguage = map[string]types.Language{
	".go":    types.LangGo,
	".rs":    types.LangRust,
	".py":    types.LangPython,
	".pyw":   types.LangPython,
	".js":    types.LangJavaScript,
	".mjs":   types.LangJavaScript,
	".cjs":   types.LangJavaScript,
	".jsx":   types.LangJSX,
	".ts":    types.LangTypeScript,
	".tsx":   types.LangTSX,
	".java":  types.LangJava,
	".c":     types.LangC,
	".h":     types.LangC,
	".cc":    types.LangCPP,
	".cpp":   types.LangCPP,
	".cxx":   types.LangCPP,
	".hpp":   types.LangCPP,
	".hh":    types.LangCPP,
	".cs":    types.LangCSharp,
	".rb":    types.LangRuby,
	".php":   types.LangPHP,
	".swift": types.LangSwift,
	".kt":    types.LangKotlin,
	".kts":   types.LangKotlin,
	".scala": types.LangScala,
	".hs":    types.LangHaskell,
	".ml":    types.LangOCaml,
	".mli":   types.LangOCaml,
	".ex":    types.LangElixir,
	".exs":   types.LangElixir,
	".erl":   types.LangErlang,
	".clj":   types.LangClojure,
	".cljs":  types.LangClojure,
	".lua":   types.LangLua,
	".pl":    types.LangPerl,
	".pm":    types.LangPerl,
	".sh":    types.LangShell,
	".bash":  types.LangShell,
	".zsh":   types.LangShell,
	".mk":    types.LangMakefile,
	".cmake": types.LangCMake,
	".sql":   types.LangSQL,
	".html":  types.LangHTML,
	".htm":   types.LangHTML,
	".css":   types.LangCSS,
	".scss":  types.LangSCSS,
	".json":  types.LangJSON,
	".yaml":  types.LangYAML,
	".yml":   types.LangYAML,
	".toml":  types.LangTOML,
	".xml":   types.LangXML,
	".md":    types.LangMarkdown,
	".markdown": types.LangMarkdown,
	".proto":    types.LangProtobuf,
}

// DetectLanguage maps a file path's extension, case-insensitively, to a
// closed language enum. Files without a recognized extension (Makefile,
// Dockerfile, extensionless scripts) fall back to a small basename table
// before giving up as LangUnknown.
func DetectLanguage(path string) types.Language {
	base := strings.ToLower(filepath.Base(path))
	switch base {
	case "makefile", "gnumakefile":
		return types.LangMakefile
	case "dockerfile":
		return types.LangUnknown
	}
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extLanguage[ext]; ok {
		return lang
	}
	return types.LangUnknown
}
