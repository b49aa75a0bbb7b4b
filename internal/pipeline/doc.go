// Package pipeline prepares invoice preview markup for the browser.
//
//   - Notes are rendered from Markdown to an HTML fragment (goldmark).
//   - The preview stylesheet is injected as a <style> block.
//   - A sanitized clone of the preview is produced for the retry capture,
//     with scripts, animations and unsupported color functions removed.
package pipeline
