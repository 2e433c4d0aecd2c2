// Package browser is the page-automation capability the runner drives.
//
// Launcher, Session, Page and Locator are deliberately narrow: they cover the
// actions and reads a scenario step can express. PlaywrightLauncher implements
// them with playwright-go; package fakebrowser implements them in memory.
//
// Each Session is an isolated browser context, so cookies and storage never
// leak between scenarios. Sessions of one Launcher share the browser process.
package browser
