//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package stage

import (
	"context"
	"errors"

	"github.com/inboxflow/inboxflow/graph"
	"github.com/inboxflow/inboxflow/log"
	"github.com/inboxflow/inboxflow/mail"
	"github.com/inboxflow/inboxflow/service"
)

// Sender returns the send stage. The approved draft is transmitted as a
// threaded reply at most once per (conversation, epoch, stage) key: a resume
// that replays the send path finds the key already marked and completes
// without a second transmission.
func Sender(sender service.MailSender, registry *SendRegistry) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (any, error) {
		email, ok := mail.Request(state)
		if !ok {
			return failure(mail.StageSend, errors.New("missing request"), nil), nil
		}
		draft := mail.Draft(state)
		if draft == "" {
			return failure(mail.StageSend, errors.New("no draft to send"), nil), nil
		}

		key := SendKey(mail.ConversationID(state), mail.Epoch(state), mail.StageSend)
		if !registry.MarkOnce(key) {
			log.Infof("send already executed for %s, skipping", key)
			return graph.State{mail.KeyStatus: mail.StatusCompleted}, nil
		}

		msg, err := sender.Send(ctx, []string{email.From}, email.ReplySubject(), draft, email.ThreadID)
		if err != nil {
			return graph.State{
				mail.KeyErrors: []mail.StageError{{Stage: mail.StageSend, Message: err.Error()}},
				mail.KeyStatus: mail.StatusError,
			}, nil
		}
		log.Infof("sent reply %s for conversation %s", msg.MessageID, mail.ConversationID(state))

		return graph.State{mail.KeyStatus: mail.StatusCompleted}, nil
	}
}
