// Package sniff classifies a byte buffer as one of the columnar container
// formats quiver can decode, before any decoder is invoked.
//
// # Precedence
//
// Detect applies these rules in order and stops at the first match:
//
//  1. fewer than 4 bytes: too short
//  2. trailing "PAR1": Parquet (footer length check is advisory)
//  3. leading "ARROW1\0\0": Arrow IPC file (schema size check is advisory)
//  4. 0xFFFFFFFF continuation plus a plausible length: Arrow IPC stream
//  5. leading "FEA1": Feather v1
//  6. a known foreign signature (zip, gzip, bzip2, pdf, jpeg, png, json,
//     xml/html, avro): "detected X, not supported"
//  7. printable text with separators and line breaks: CSV/TSV diagnostic
//  8. a plausible leading flatbuffer length: speculative Arrow IPC
//  9. mostly non-printable leading bytes: corrupted binary diagnostic
//  10. anything else: a diagnostic listing the supported formats
//
// # Feather v2
//
// Feather v2 files are Arrow IPC files, byte for byte. Detect reports them
// as ArrowIpcFile with Feather listed in Detection.Ambiguous and makes no
// attempt to tell the two apart; both decode through the same reader.
package sniff
