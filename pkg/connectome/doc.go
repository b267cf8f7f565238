// Package connectome loads structural connectivity matrices and puts them in
// the canonical form every metric expects: square, symmetric, non-negative,
// finite, with a zero diagonal.
//
// Files are headerless numeric grids. The tokenizer accepts comma, semicolon,
// tab and whitespace separated rows, optionally wrapped in brackets or quotes,
// which covers the exports produced by the tractography tools in use.
package connectome
