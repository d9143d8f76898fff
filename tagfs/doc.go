// Package tagfs adapts the engine to a FUSE filesystem. Tags appear as
// top-level directories and names as the files inside them; the same
// content filed under several names is one inode with a matching link
// count. Writes buffer in the node and commit as a single content
// transition on flush.
package tagfs
