// Package format renders CLI output: tables, relative dates, byte sizes,
// copy progress and structured JSON or YAML documents.
package format
