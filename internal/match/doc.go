// Package match provides identifier tokenization and "did you mean"
// suggestions for misspelled option, field and type names.
//
// Key functions:
//   - Tokens: splits camelCase / snake_case identifiers into words
//   - NormalizeIdent: folds an identifier for fuzzy comparison
//   - Levenshtein: edit distance between two strings
//   - Suggest: the closest known name to a misspelled one
package match
