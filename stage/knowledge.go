//
// Copyright (C) 2025 inboxflow authors. All rights reserved.
//
// inboxflow is licensed under the Apache License Version 2.0.
//
//

package stage

import (
	"context"
	"fmt"

	"github.com/inboxflow/inboxflow/graph"
	"github.com/inboxflow/inboxflow/mail"
	"github.com/inboxflow/inboxflow/service"
)

// Knowledge returns the knowledge-lookup stage. It queries the document
// repository with the request summary and records findings in its task
// bundle.
func Knowledge(store service.DocumentStore) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (any, error) {
		ectx, _ := mail.Context(state)
		query := ectx.Summary
		if query == "" {
			if email, ok := mail.Request(state); ok {
				query = email.Subject
			}
		}

		docs, err := store.Search(ctx, query)
		if err != nil {
			return failure(mail.StageKnowledge, err, mail.KnowledgeData{}), nil
		}

		data := mail.KnowledgeData{Completed: true}
		var insights []string
		for _, doc := range docs {
			data.Findings = append(data.Findings, fmt.Sprintf("%s: %s", doc.Title, doc.Snippet))
			insights = append(insights, doc.Title)
		}
		update := graph.State{
			mail.KeyTaskData: map[string]any{mail.StageKnowledge: data},
		}
		if len(insights) > 0 {
			update[mail.KeyInsights] = insights
		}
		return update, nil
	}
}
