// Package render turns spotted message text into a branded story card image.
//
// Three backends are tried in priority order: wkhtmltoimage (fast, needs the
// binary on the host), headless chromium (slower, highest CSS fidelity), and
// a procedural rasterizer that draws the same composition straight onto a
// pixel buffer and only needs a loadable font. A backend failure is converted
// into a try-next signal and never escapes the renderer; only when every
// backend fails does Render return an error, carrying the last error from
// each backend.
//
// Every backend produces the configured card dimensions. Callers learn which
// backend ran only through Result.Backend, for diagnostics.
package render
