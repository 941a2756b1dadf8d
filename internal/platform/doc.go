// Package platform talks to the external social platform on behalf of one
// account: session validation and login (including verification challenges
// and time-based two-factor codes), story uploads, and the retry policy
// around them.
//
// All knowledge of the platform's error surface lives here. Callers receive
// either sentinel-tagged errors from internal/services or an Outcome from
// Classify; no other package inspects platform error text.
package platform
