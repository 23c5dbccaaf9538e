// Package streak computes daily-visit streak transitions.
//
// Transition is the only place the streak rules live. The live check-in path and the
// nightly reconciliation sweep both call it, so a sweep resets exactly the identities
// that would restart at 1 had they checked in at the same instant.
package streak
