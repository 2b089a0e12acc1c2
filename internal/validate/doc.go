// Package validate decides whether a discovered file may enter the pipeline.
//
// Validation reads file metadata only; contents are never opened. A file
// passes when its size does not exceed the configured byte limit and its
// extension appears in the allowed set. Extensions are compared after
// NormalizeExtension, so ".TXT", "txt" and ".txt" are equivalent.
package validate
