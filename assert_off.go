//go:build strata_release

package strata

const assertionsEnabled = false
