package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/joss/mcpd/internal/dispatch"
	"github.com/joss/mcpd/internal/metrics"
	"github.com/joss/mcpd/internal/render"
	"github.com/joss/mcpd/internal/tool"
)

// Toolset is the store-mcp tool table.
type Toolset struct {
	store   *Store
	metrics *metrics.Metrics
}

// New creates a toolset over an open store.
func New(store *Store, m *metrics.Metrics) *Toolset {
	return &Toolset{store: store, metrics: m}
}

// Specs implements dispatch.Toolset.
func (t *Toolset) Specs() []tool.Spec { return Specs() }

// Close implements dispatch.Toolset.
func (t *Toolset) Close(context.Context) error {
	return t.store.Close()
}

// Handlers implements dispatch.Toolset.
func (t *Toolset) Handlers() dispatch.Table {
	return dispatch.Table{
		"store_set":    t.set,
		"store_get":    t.get,
		"store_delete": t.delete,
		"store_list":   t.list,
		"store_search": t.search,
		"store_clear":  t.clear,
		"store_stats":  t.stats,
	}
}

func (t *Toolset) set(ctx context.Context, args tool.Args) (*tool.Result, error) {
	ns, key := args.String("namespace"), args.String("key")
	ttl := time.Duration(args.Int("ttl_seconds")) * time.Second
	if ttl < 0 {
		return tool.ErrorText("ttl_seconds must not be negative"), nil
	}

	created, err := t.store.Set(ctx, ns, key, args["value"], ttl)
	t.metrics.RecordExternal("set", err)
	if err != nil {
		return nil, err
	}

	verb := "Updated"
	if created {
		verb = "Stored"
	}
	msg := fmt.Sprintf("%s %s/%s", verb, ns, key)
	if ttl > 0 {
		msg += fmt.Sprintf(" (expires in %s)", render.FormatDuration(ttl))
	}
	return tool.Text(msg), nil
}

func (t *Toolset) get(ctx context.Context, args tool.Args) (*tool.Result, error) {
	e, err := t.store.Get(ctx, args.String("namespace"), args.String("key"))
	t.metrics.RecordExternal("get", err)
	if err != nil {
		return nil, err
	}

	b := render.NewBuilder()
	b.KV("Key", e.Namespace+"/"+e.Key)
	b.KV("Updated", e.UpdatedAt.Format(time.RFC3339))
	if e.ExpiresAt != nil {
		b.KV("Expires", fmt.Sprintf("%s (in %s)", e.ExpiresAt.Format(time.RFC3339), render.FormatDuration(e.ExpiresAt.Sub(t.store.now()))))
	}
	b.Section("Value")
	b.Block(pretty(e.Value))
	return b.Result(), nil
}

func (t *Toolset) delete(ctx context.Context, args tool.Args) (*tool.Result, error) {
	ns, key := args.String("namespace"), args.String("key")
	err := t.store.Delete(ctx, ns, key)
	t.metrics.RecordExternal("delete", err)
	if err != nil {
		return nil, err
	}
	return tool.Textf("Deleted %s/%s", ns, key), nil
}

func (t *Toolset) list(ctx context.Context, args tool.Args) (*tool.Result, error) {
	f := Filter{
		Namespace: args.String("namespace"),
		Pattern:   args.String("pattern"),
		Limit:     args.Int("limit"),
	}
	entries, err := t.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return tool.Textf("No keys matching %s in %s", f.Pattern, f.Namespace), nil
	}

	b := render.NewBuilder()
	b.Header("Keys in %s (%d)", f.Namespace, len(entries))
	b.Table([]string{"key", "size", "updated", "expires"}, t.entryRows(entries))
	if f.Limit > 0 && len(entries) == f.Limit {
		b.Line()
		b.Println("(limit %d reached)", f.Limit)
	}
	return b.Result(), nil
}

func (t *Toolset) search(ctx context.Context, args tool.Args) (*tool.Result, error) {
	query := args.String("query")
	entries, err := t.store.Search(ctx, query, args.String("namespace"), args.Int("limit"))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return tool.Textf("No entries contain %q", query), nil
	}

	b := render.NewBuilder()
	b.Println("%d entries contain %q", len(entries), query)
	b.Line()
	for _, e := range entries {
		b.Item("%s/%s", e.Namespace, e.Key)
		b.Nested("%s", render.Truncate(string(e.Value), 120))
	}
	return b.Result(), nil
}

func (t *Toolset) clear(ctx context.Context, args tool.Args) (*tool.Result, error) {
	ns := args.String("namespace")
	n, err := t.store.Clear(ctx, ns)
	t.metrics.RecordExternal("clear", err)
	if err != nil {
		return nil, err
	}
	return tool.Textf("Cleared %d keys from %s", n, ns), nil
}

func (t *Toolset) stats(ctx context.Context, _ tool.Args) (*tool.Result, error) {
	st, err := t.store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	b := render.NewBuilder()
	b.Header("Store")
	b.KV("Path", st.Path)
	b.KV("File size", render.FormatBytes(st.FileSize))
	b.KV("Entries", st.Entries)
	b.KV("With TTL", st.Expiring)
	b.KV("Namespaces", len(st.Namespaces))
	if len(st.Namespaces) > 0 {
		rows := make([][]string, 0, len(st.Namespaces))
		for _, ns := range st.Namespaces {
			rows = append(rows, []string{ns.Name, fmt.Sprint(ns.Entries), render.FormatBytes(ns.Bytes)})
		}
		b.Line()
		b.Table([]string{"namespace", "entries", "size"}, rows)
	}
	return b.Result(), nil
}

func (t *Toolset) entryRows(entries []*Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		expires := "-"
		if e.ExpiresAt != nil {
			expires = "in " + render.FormatDuration(e.ExpiresAt.Sub(t.store.now()))
		}
		rows = append(rows, []string{e.Key, render.FormatBytes(int64(len(e.Value))), e.UpdatedAt.Format("2006-01-02 15:04:05"), expires})
	}
	return rows
}

func pretty(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
