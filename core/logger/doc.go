// Package logger is the leveled trace the shell writes while it runs.
//
// Entries are protobuf Struct values marshalled one JSON object per line so
// they can be read back with ReadJSONLinesLog and summarised with Report.
package logger
