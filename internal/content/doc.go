// Package content is the read side of the site's CMS snapshot.
//
// A [Store] is an immutable query layer over one snapshot document: lookups
// by collection, slug and documentId, typed page models whose rich-text
// fields are already classified, and URL/date helpers for templates. It is
// constructed explicitly and passed to whatever renders pages; there is no
// package-level snapshot.
//
// The server side keeps the active Store in a [Manager] and replaces it
// without locking when a new snapshot arrives:
//   - [Loader]: reads the snapshot named by an SSM release pointer from S3,
//     checking its sha256 and, when configured, its KMS signature
//   - [LoadFile]: reads a snapshot from local disk
//   - [Watcher]: polls the SSM pointer and hot-swaps new snapshots
//   - [FileWatcher]: reloads the local file when it changes
package content
