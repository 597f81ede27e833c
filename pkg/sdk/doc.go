// Package painradar embeds the pain-point discovery pipeline in a Go program.
//
// A run fans a short query out to the enabled sources, merges and ranks
// what comes back, and asks a language model for cited pain points.
// Sources that fail are reported, not fatal.
//
//	client, err := painradar.New(ctx,
//	    painradar.WithHackerNews(10),
//	    painradar.WithDuckDuckGo(),
//	    painradar.WithOpenAI(os.Getenv("OPENAI_API_KEY"), ""),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	report, err := client.Run(ctx, "invoice reconciliation",
//	    painradar.Within(painradar.TimeMonth),
//	    painradar.Limit(painradar.SourceHackerNews, 30),
//	)
//
// # Streaming
//
// Stream returns progress events while the run executes. The events
// channel is closed before the report is delivered.
//
//	events, result, err := client.Stream(ctx, "churn in b2b saas")
//	for ev := range events {
//	    log.Println(ev.State, ev.Source, ev.Outcome)
//	}
//	report := <-result
package painradar
