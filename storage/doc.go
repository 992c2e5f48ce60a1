// Package storage stores uploaded projects as objects addressed by
// slash-separated keys.
//
// R2Store talks to Cloudflare R2 through the S3 API and hands out presigned
// PUT URLs so browsers upload directly. LocalStore keeps objects on disk for
// development and offline review, spreading upload prefixes over color hash
// bucket directories. MemoryStore backs tests.
package storage
