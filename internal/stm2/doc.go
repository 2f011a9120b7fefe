// Package stm2 parses the CSV log lines written by an STM-2 deposition
// rate/thickness monitor.
//
// # Line Format
//
// Each data line carries four comma separated numbers, usually with a
// trailing separator:
//
//	12.5,0.33,45.2,6000000.0,
//
// The fields are instrument time (seconds), deposition rate, cumulative
// thickness and crystal frequency. The instrument also writes marker lines
// that begin with Start, Stop or Time; those are never samples.
//
// # Error Handling
//
// Parse never fails loudly. Anything that is not exactly four finite numbers
// is reported as not-a-sample and the caller drops it. Invalid UTF-8 is
// stripped before parsing so encoding noise cannot escape as an error.
package stm2
