package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/render"
)

// scenarios are the scripted demos, by name.
var scenarios = map[string]func(rt *reactive.Runtime, fr *frames) error{
	"counter":  counterDemo,
	"list":     listDemo,
	"suspense": suspenseDemo,
}

func demoCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "demo [counter|list|suspense]",
		Short: "Run a scripted scenario and print every frame",
		Long: `Run a scripted scenario against an in-memory document.

After each step the live tree is printed together with the patches
the commit produced.

Examples:
  reactor demo counter
  reactor demo list --patches`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: scenarioNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "counter"
			if len(args) == 1 {
				name = args[0]
			}
			run, ok := scenarios[name]
			if !ok {
				return errors.New("E140").
					WithDetail(fmt.Sprintf("No scenario named %q.", name)).
					WithSuggestion("Use one of: " + strings.Join(scenarioNames(), ", "))
			}

			rt := reactive.New(reactive.WithLogger(cliLogger(cmd.ErrOrStderr())))
			fr := &frames{w: cmd.OutOrStdout(), doc: render.NewDocument(), verbose: verbose}
			return run(rt, fr)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "patches", "p", false, "Print each patch instead of a summary")

	return cmd
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// frames prints the document after each committed step.
type frames struct {
	w       io.Writer
	doc     *render.Document
	verbose bool
	n       int
}

func (f *frames) print(label string) {
	patches := f.doc.TakePatches()
	f.n++
	fmt.Fprintf(f.w, "frame %-3d %-12s %s\n", f.n, label, f.doc.HTML())
	if len(patches) == 0 {
		return
	}
	if f.verbose {
		for _, p := range patches {
			fmt.Fprintf(f.w, "          %s\n", p)
		}
		return
	}
	fmt.Fprintf(f.w, "          %s\n", summarize(patches))
}

// step runs fn in a flush and prints the resulting frame.
func (f *frames) step(rt *reactive.Runtime, label string, fn func()) error {
	if err := rt.FlushSync(fn); err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	f.print(label)
	return nil
}

func summarize(patches []render.Patch) string {
	ops := []render.PatchOp{
		render.PatchInsertNode,
		render.PatchRemoveNode,
		render.PatchMoveNode,
		render.PatchSetText,
	}
	parts := make([]string, 0, len(ops))
	for _, op := range ops {
		if n := render.Count(patches, op); n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", op, n))
		}
	}
	return strings.Join(parts, " ")
}

func appendText(parent *render.Node, s string) *render.Node {
	n := parent.Document().CreateText(s)
	parent.AppendChild(n)
	return n
}

func insertText(anchor *render.Node, s string) *render.Node {
	n := anchor.Document().CreateText(s)
	anchor.Parent().InsertBefore(n, anchor)
	return n
}

func counterDemo(rt *reactive.Runtime, fr *frames) error {
	count := reactive.NewSource(rt, 0, reactive.WithLabel("count"))
	doubled := reactive.NewComputed(rt, func() int { return count.Get() * 2 })
	even := reactive.NewComputed(rt, func() bool { return count.Get()%2 == 0 })

	doc := fr.doc
	rt.Mount(doc.Root(), func(anchor *render.Node) {
		p := doc.CreateElement("p")
		anchor.Parent().InsertBefore(p, anchor)
		text := appendText(p, "")
		rt.RenderEffect(func() reactive.Cleanup {
			text.SetText(fmt.Sprintf("%d × 2 = %d", count.Get(), doubled.Get()))
			return nil
		})

		reactive.If(rt, anchor, even.Get,
			func(a *render.Node) { insertText(a, "even") },
			func(a *render.Node) { insertText(a, "odd") },
		)
	})
	if err := fr.step(rt, "mount", nil); err != nil {
		return err
	}

	for i := 0; i < 3; i++ {
		if err := fr.step(rt, "increment", func() {
			count.Update(func(n int) int { return n + 1 })
		}); err != nil {
			return err
		}
	}
	// Two writes in one batch commit once.
	return fr.step(rt, "+1 -1", func() {
		count.Update(func(n int) int { return n + 1 })
		count.Update(func(n int) int { return n - 1 })
	})
}

func listDemo(rt *reactive.Runtime, fr *frames) error {
	items := reactive.NewSource(rt, []string{"a", "b", "c", "d", "e"})

	doc := fr.doc
	rt.Mount(doc.Root(), func(anchor *render.Node) {
		ul := doc.CreateElement("ul")
		anchor.Parent().InsertBefore(ul, anchor)
		reactive.Each(rt, doc.Anchor(ul), items.Get, nil,
			func(a *render.Node, item *reactive.Source[string], _ *reactive.Source[int]) {
				li := doc.CreateElement("li")
				a.Parent().InsertBefore(li, a)
				text := appendText(li, "")
				rt.RenderEffect(func() reactive.Cleanup {
					text.SetText(item.Get())
					return nil
				})
			},
			reactive.EachFallback(func(a *render.Node) { insertText(a, "(empty)") }),
		)
	})
	if err := fr.step(rt, "mount", nil); err != nil {
		return err
	}

	steps := []struct {
		label string
		items []string
	}{
		{"append", []string{"a", "b", "c", "d", "e", "f"}},
		{"rotate", []string{"f", "a", "b", "c", "d", "e"}},
		{"swap", []string{"f", "a", "d", "c", "b", "e"}},
		{"remove", []string{"f", "d", "b", "e"}},
		{"reverse", []string{"e", "b", "d", "f"}},
		{"clear", nil},
		{"refill", []string{"x", "y"}},
	}
	for _, s := range steps {
		if err := fr.step(rt, s.label, func() { items.Set(s.items) }); err != nil {
			return err
		}
	}
	return nil
}

var errNotFound = stderrors.New("user not found")

func suspenseDemo(rt *reactive.Runtime, fr *frames) error {
	users := map[int]string{1: "Ada", 2: "Grace"}
	id := reactive.NewSource(rt, 1, reactive.WithLabel("id"))

	// Requests are settled by the script, one at a time.
	var (
		pending []*reactive.Future[string]
		ids     []int
		retry   func()
	)
	settle := func() {
		for i, f := range pending {
			if name, ok := users[ids[i]]; ok {
				f.Resolve(name)
			} else {
				f.Reject(errNotFound)
			}
		}
		pending, ids = nil, nil
	}

	doc := fr.doc
	rt.Mount(doc.Root(), func(anchor *render.Node) {
		reactive.NewBoundary(rt, anchor, reactive.BoundaryProps{
			Pending: func(a *render.Node) { insertText(a, "loading…") },
			Failed: func(a *render.Node, err error, reset func()) {
				retry = reset
				insertText(a, "failed: "+err.Error())
			},
		}, func(a *render.Node) {
			name := reactive.NewAsync(rt, func(ctx context.Context) *reactive.Future[string] {
				f := reactive.NewFuture[string]()
				pending = append(pending, f)
				ids = append(ids, id.Get())
				return f
			})
			text := insertText(a, "")
			rt.RenderEffect(func() reactive.Cleanup {
				text.SetText("hello " + name.Get())
				return nil
			})
		})
	})

	script := []struct {
		label string
		fn    func()
	}{
		{"mount", nil},
		{"resolve", settle},
		{"id=2", func() { id.Set(2) }},
		{"resolve", settle},
		{"id=3", func() { id.Set(3) }},
		{"reject", settle},
		{"retry", func() {
			users[3] = "Edsger"
			if retry != nil {
				retry()
			}
		}},
		{"resolve", settle},
	}
	for _, s := range script {
		if err := fr.step(rt, s.label, s.fn); err != nil {
			return err
		}
	}
	return nil
}
