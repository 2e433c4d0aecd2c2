// Package fixture validates the Playwright storage-state file that carries
// the authenticated console session. A missing, malformed or expired
// fixture is reported before any scenario opens a browser.
package fixture
