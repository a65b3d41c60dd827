// Package reactive is a fine-grained reactive runtime.
//
// A Runtime owns a graph of sources (writable cells), computeds (memoized
// derived cells) and effects (reactions with side effects), and a scheduler
// that batches writes, propagates dirtiness and commits changes to a
// render.Document.
//
// # Core Types
//
// Source[T] is a writable cell:
//
//	count := reactive.NewSource(rt, 0)
//	count.Get()   // read, subscribes the running reaction
//	count.Set(5)  // write, schedules dependents
//
// Computed[T] is a lazy, memoized derived value:
//
//	double := reactive.NewComputed(rt, func() int { return count.Get() * 2 })
//
// Effects live in a tree rooted at rt.Root or rt.Mount:
//
//	dispose := rt.Root(func() {
//	    rt.Effect(func() reactive.Cleanup {
//	        fmt.Println("double is", double.Get())
//	        return nil
//	    })
//	})
//
// # Scheduling
//
// Writes open a Batch. The batch flushes in a microtask: render effects
// run first, then user effects, each at most once per flush. A diamond
// (one source, two computeds, one effect) runs the effect once per write,
// and every effect sees the final values of the batch.
//
// FlushSync processes everything synchronously. An effect that keeps
// writing what it reads trips the loop guard (E101) after
// WithMaxFlushIterations iterations.
//
// # Structure
//
// If and Each are block effects that own branch regions of host nodes.
// Each reconciles a keyed list with a single forward pass and moves rows
// instead of recreating them. Both build new content offscreen when the
// change happens inside a batch, and swap it in at commit.
//
// # Async
//
// NewAsync starts work that returns a Future. Until it settles, the batch
// that started it holds back its effects, or a Boundary with a Pending
// snippet shows its placeholder. A Boundary with OnError or Failed catches
// errors raised by effects in its subtree.
//
// # Threading
//
// A Runtime is single-threaded. Everything runs on the goroutine that
// drives it with Run, Tick or FlushSync. Other goroutines use Dispatch or
// Call, and Futures may be settled from anywhere.
package reactive
