// Package docsync embeds the docsync record store in a Go program.
//
// Records are saved to Valkey or Redis; every save and removal is mirrored into an
// Elasticsearch-compatible search engine. Resync rebuilds a collection's index from
// the store and swaps it in behind an alias.
//
// # Low-level API
//
//	client, _ := docsync.New(ctx,
//	    docsync.WithValkey("localhost:6379", ""),
//	    docsync.WithSearch(docsync.SearchOptions{URL: "http://localhost:9200"}),
//	    docsync.WithCollection("posts", docsync.SearchOptions{Prefix: "blog"}),
//	)
//	defer client.Close()
//
//	rec := docsync.NewRecord("posts", map[string]any{"title": "hello"})
//	_, _ = client.Records("posts").Save(ctx, rec)
//	report, _ := client.Resync(ctx, "posts")
//
// # Typed API
//
//	type Post struct {
//	    ID     docsync.ObjectID `docsync:",id"`
//	    Title  string           `docsync:"title"`
//	    Author docsync.Ref      `docsync:"author"`
//	    Tags   []string         `docsync:"tags,omitempty"`
//	}
//
//	posts, _ := docsync.NewCollection[Post](client, "posts")
//	_, _ = posts.Save(ctx, &Post{Title: "hello"})
package docsync
