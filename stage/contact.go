//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package stage

import (
	"context"

	"github.com/inboxflow/inboxflow/graph"
	"github.com/inboxflow/inboxflow/mail"
	"github.com/inboxflow/inboxflow/service"
)

// Contact returns the contact-lookup stage. It resolves every entity named
// in the extracted context against the directory, partitioning results into
// found contacts and unknown names.
func Contact(dir service.Directory) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (any, error) {
		ectx, _ := mail.Context(state)

		data := mail.ContactData{Completed: true}
		for _, entity := range ectx.Entities {
			records, err := dir.Search(ctx, entity)
			if err != nil {
				return failure(mail.StageContact, err, mail.ContactData{}), nil
			}
			if len(records) == 0 {
				data.Unknown = append(data.Unknown, entity)
				continue
			}
			for _, r := range records {
				data.Found = append(data.Found, mail.Contact{
					Name:  r.Name,
					Email: r.Email,
					Title: r.Title,
				})
			}
		}

		return graph.State{
			mail.KeyTaskData: map[string]any{mail.StageContact: data},
		}, nil
	}
}
