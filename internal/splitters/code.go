package splitters

// languageSeparators ranks split points per language so chunk
// boundaries land on declaration and block edges before falling back
// to blank lines.
var languageSeparators = map[string][]string{
	"go": {
		"\nfunc ", "\ntype ", "\nconst ", "\nvar ",
		"\n\n", "\n", " ", "",
	},
	"python": {
		"\nclass ", "\ndef ", "\n\tdef ", "\n    def ",
		"\n\n", "\n", " ", "",
	},
	"javascript": {
		"\nfunction ", "\nconst ", "\nlet ", "\nvar ", "\nclass ",
		"\n\n", "\n", " ", "",
	},
	"typescript": {
		"\nfunction ", "\nconst ", "\nlet ", "\nclass ",
		"\ninterface ", "\ntype ", "\nenum ",
		"\n\n", "\n", " ", "",
	},
	"java": {
		"\nclass ", "\npublic ", "\nprotected ", "\nprivate ", "\nstatic ",
		"\n\n", "\n", " ", "",
	},
	"c": {
		"\nstruct ", "\ntypedef ", "\nstatic ", "\nvoid ", "\nint ",
		"\n\n", "\n", " ", "",
	},
	"cpp": {
		"\nclass ", "\nstruct ", "\nnamespace ", "\ntemplate ",
		"\nvoid ", "\nint ",
		"\n\n", "\n", " ", "",
	},
	"rust": {
		"\nfn ", "\nimpl ", "\nstruct ", "\nenum ", "\ntrait ", "\nmod ",
		"\n\n", "\n", " ", "",
	},
	"ruby": {
		"\nclass ", "\nmodule ", "\ndef ",
		"\n\n", "\n", " ", "",
	},
	"php": {
		"\nfunction ", "\nclass ", "\ntrait ", "\ninterface ",
		"\n\n", "\n", " ", "",
	},
	"markdown": {
		"\n## ", "\n### ", "\n#### ",
		"\n\n", "\n", " ", "",
	},
}

// NewCode returns a splitter tuned for the given source language. An
// unrecognised language falls back to the default separators.
func NewCode(language string, chunkSize, chunkOverlap int) *Recursive {
	seps, ok := languageSeparators[language]
	if !ok {
		seps = defaultSeparators
	}
	return NewRecursive(chunkSize, chunkOverlap, seps)
}
