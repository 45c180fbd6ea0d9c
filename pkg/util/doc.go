// Package util provides small helpers shared across mirage packages.
//
//   - LogBody renders bodies recorded in the call log
package util
