// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// search.go - The search command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/joshndala/shyft-rag-app/internal/query"
	"github.com/joshndala/shyft-rag-app/internal/transport"
	"github.com/joshndala/shyft-rag-app/internal/util"
)

// SearchFailedMessage is shown when the backend gives no error detail.
const SearchFailedMessage = "Error searching documents"

// HandleSearch handles "shyft search". Results are printed in the order the
// backend ranked them.
func HandleSearch(ctx context.Context, env *Env, args Args) error {
	q := query.Query{Text: args.Query, Mode: query.Search}
	if _, err := q.Validate(); err != nil {
		return err
	}

	topK := env.Config.Search.TopK
	if args.TopK > 0 {
		topK = args.TopK
	}
	weights := transport.Weights{
		Semantic: env.Config.Search.SemanticWeight,
		Keyword:  env.Config.Search.KeywordWeight,
	}
	if args.SemanticWeight != nil {
		weights.Semantic = *args.SemanticWeight
	}
	if args.KeywordWeight != nil {
		weights.Keyword = *args.KeywordWeight
	}

	ctrl := env.Controller(query.WithSearchDefaults(topK, weights))
	defer ctrl.Teardown()

	if err := ctrl.Submit(ctx, q); err != nil {
		return searchError(err)
	}
	st, err := ctrl.Wait(ctx)
	if err != nil {
		ctrl.Cancel()
		return err
	}
	if st.Status == query.Failed {
		return searchError(st.Err)
	}

	if env.JSON {
		return NewJSONResponse("search", SearchData{
			Query:          st.Query,
			TopK:           topK,
			SemanticWeight: weights.Semantic,
			KeywordWeight:  weights.Keyword,
			TotalResults:   len(st.Results),
			Results:        st.Results,
		}).Fprint(env.Out)
	}

	width := env.Config.Search.SnippetLength
	if args.Full {
		width = 0
	}
	writeResults(env.Out, st.Results, width, env.Config.UI.ShowScores)
	return nil
}

// searchError shows the backend's detail when it sent one.
func searchError(err error) error {
	var te *transport.TransportError
	if errors.As(err, &te) && te.Detail != "" {
		return &userError{Message: te.Detail, Err: err}
	}
	return &userError{Message: SearchFailedMessage, Err: err}
}

// writeResults prints numbered results. Text is collapsed onto one line and
// truncated to snippetWidth display cells; 0 keeps it whole.
func writeResults(w io.Writer, results []transport.SearchResult, snippetWidth int, showScores bool) {
	if len(results) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No results found"))
		return
	}

	for i, r := range results {
		header := fmt.Sprintf("%d. %s", i+1, HighlightStyle.Render(r.Source()))
		if showScores {
			header += " " + InfoStyle.Render(fmt.Sprintf("(score: %.2f)", r.Score))
		}
		fmt.Fprintln(w, header)

		text := util.CollapseSpace(r.Text)
		if snippetWidth > 0 {
			text = util.TruncateWidth(text, snippetWidth)
		}
		fmt.Fprintf(w, "   %s\n", text)
		if i < len(results)-1 {
			fmt.Fprintln(w)
		}
	}
}
