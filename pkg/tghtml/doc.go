// Package tghtml builds Telegram HTML message bodies.
//
// Telegram's HTML parse mode accepts a small tag subset and rejects the
// whole message on malformed markup, so all user-supplied text must go
// through Esc (or the tag helpers, which escape internally).
package tghtml
