// Package imagefetch turns a remotely hosted image into an embeddable PNG
// data URI.
//
// Browsers refuse to rasterize cross-origin images that are not served with
// permissive CORS headers. The Engine works around this with an ordered
// cascade of strategies that differ in request mode, credential mode, and
// network path:
//
//  1. anonymous: CORS mode, credentials omitted, rasterized
//  2. default-credentials: no-cors mode, only succeeds for same-origin data
//  3. blob: bytes copied to a temporary local reference, then rasterized
//  4. relay: strategy 1 through each public CORS relay in order
//  5. direct: raw fetch under three request modes, encoded without decoding
//
// Strategies run one at a time. Each load attempt is bounded by the strategy
// timeout. The first success wins. When every strategy fails, Acquire
// returns nil: callers proceed without the image.
//
// Request modes are emulated by HTTPFetcher relative to a configured
// application origin, so the same cascade behaves the way it would inside a
// browser page served from that origin.
package imagefetch
