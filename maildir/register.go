package maildir

import "github.com/infodancer/mailboxes"

// Priority is the probe priority used by Register. The new/cur/tmp marker
// directories are distinctive, so maildir is probed early.
const Priority = 10

// Register adds the maildir format to r at Priority.
func Register(r *mailboxes.Registry) {
	r.Register(Priority, Format{})
}
