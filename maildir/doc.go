// Package maildir provides the Maildir format handler for mailboxes.
//
// A directory is recognized as a maildir when it contains the three
// standard subdirectories:
//
//	path/
//	├── new/     # Newly delivered messages
//	├── cur/     # Messages that have been seen
//	└── tmp/     # Temporary files during delivery
//
// When the "maildir_subdir" option is set (e.g., "Maildir"), a user
// directory holding the maildir in that subdirectory is recognized too.
//
// TOC IDs are maildir keys: the message filename without its ":2," info
// suffix. They stay stable when a message moves from new/ to cur/ or
// changes flags.
//
// Register the format with an application registry at startup:
//
//	reg := mailboxes.NewRegistry()
//	maildir.Register(reg)
package maildir
