package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/infodancer/mailboxes"
)

type scanner struct {
	registry *mailboxes.Registry
	cfg      mailboxes.Config
	writer   mailboxes.Serializer
	key      mailboxes.KeyFunc
	session  mailboxes.Session
	log      *zap.Logger
}

// scan opens one configured mailbox, logs its messages, and saves its
// snapshot when a target is configured.
func (s *scanner) scan(ctx context.Context, index int, mc MailboxConfig) error {
	id := mc.ID
	if id == "" {
		var err error
		if id, err = mailboxes.FormatMailboxID(index); err != nil {
			return err
		}
	}
	if !mailboxes.ValidMailboxID(id) {
		return fmt.Errorf("mailbox %q: invalid id %q", mc.Path, id)
	}

	var opts []mailboxes.Option
	if mc.Editable {
		opts = append(opts, mailboxes.Editable())
	}
	box, err := s.registry.OpenPersistent(ctx, mc.Path, s.cfg, mc.Create, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = box.Close() }()

	messages, err := box.Messages()
	if err != nil {
		return err
	}

	var total int64
	for _, msg := range messages {
		ptr, err := box.BuildPointer(id, msg.Key)
		if err != nil {
			return err
		}
		s.log.Debug("message",
			zap.String("pointer", ptr),
			zap.Int64("size", msg.Size),
			zap.Strings("flags", msg.Flags))
		total += msg.Size
	}
	s.log.Info("Scanned mailbox",
		zap.String("id", id),
		zap.Stringer("mailbox", box),
		zap.Int("messages", len(messages)),
		zap.Int64("bytes", total))

	if mc.Snapshot == "" {
		return nil
	}
	if s.key != nil {
		box.SetEncryptionKey(s.key)
	}
	return box.SaveTo(s.session, mc.Snapshot, s.writer)
}

// zapSession reports save progress through the command's logger.
type zapSession struct {
	log *zap.Logger
}

func (z zapSession) Mark(msg string) {
	z.log.Info(msg)
}
