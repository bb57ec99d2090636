// Package psk provides a pre-shared-key record protocol engine for the channel
// package.
//
// The handshake exchanges ephemeral X25519 keys authenticated by the pre-shared
// key; record protection uses ChaCha20-Poly1305 with per-direction keys derived
// by HKDF-SHA256.
//
// Handshake flights:
//
//	client                                server
//	hello(random, x25519 pub)      -->
//	                               <--    hello(random, x25519 pub)
//	                               <--    {finished}
//	{finished}                     -->
//
// Records are framed as type(1) | length(2) | payload. Handshake hellos travel in
// the clear, every other record is sealed. Either side ends its outbound
// direction with a sealed close-notify alert.
//
// The engine is a reference implementation of channel.Engine used by the
// examples and integration tests. It doesn't negotiate anything and must not be
// mistaken for TLS.
package psk
