package mailboxes

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/infodancer/mailboxes/errors"
)

// MailboxIDLen is the fixed width of the mailbox ID at the start of every
// message pointer. Changing it invalidates stored pointers.
const MailboxIDLen = 4

// maxMailboxID is 36^MailboxIDLen.
const maxMailboxID = 36 * 36 * 36 * 36

// ValidMailboxID reports whether id is exactly MailboxIDLen base-36 characters.
func ValidMailboxID(id string) bool {
	if len(id) != MailboxIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
			return false
		}
	}
	return true
}

// FormatMailboxID renders n as a zero-padded base-36 mailbox ID.
func FormatMailboxID(n int) (string, error) {
	if n < 0 || n >= maxMailboxID {
		return "", fmt.Errorf("%w: %d out of range", errors.ErrInvalidMailboxID, n)
	}
	s := strings.ToUpper(strconv.FormatInt(int64(n), 36))
	return strings.Repeat("0", MailboxIDLen-len(s)) + s, nil
}

// EncodePointer builds the pointer for tocID within the mailbox identified
// by mailboxID. The TOC ID is percent-encoded; the mailbox ID is not.
func EncodePointer(mailboxID, tocID string) (string, error) {
	if !ValidMailboxID(mailboxID) {
		return "", fmt.Errorf("%w: %q", errors.ErrInvalidMailboxID, mailboxID)
	}
	return mailboxID + escapeTOCID(tocID), nil
}

// DecodePointer returns the TOC ID carried by ptr.
func DecodePointer(ptr string) (string, error) {
	if len(ptr) < MailboxIDLen {
		return "", fmt.Errorf("%w: %q", errors.ErrMalformedPointer, ptr)
	}
	tocID, err := url.PathUnescape(ptr[MailboxIDLen:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrMalformedPointer, err)
	}
	return tocID, nil
}

// PointerMailboxID returns the mailbox ID prefix of ptr.
func PointerMailboxID(ptr string) (string, error) {
	if len(ptr) < MailboxIDLen {
		return "", fmt.Errorf("%w: %q", errors.ErrMalformedPointer, ptr)
	}
	return ptr[:MailboxIDLen], nil
}

// escapeTOCID escapes everything but ASCII alphanumerics and "-_.~".
// QueryEscape does exactly that apart from writing spaces as "+", and a
// literal "+" is always escaped, so the replacement is unambiguous.
func escapeTOCID(tocID string) string {
	return strings.ReplaceAll(url.QueryEscape(tocID), "+", "%20")
}
