// Package pagination drives paginated collections on top of a PageFetcher.
//
// Controller keeps the state of an infinitely scrolling list: items loaded
// so far, the current page, whether more pages exist, the loading flags and
// the last error. It guarantees that at most one fetch is in flight and that
// a superseded fetch never touches state.
//
//	ctrl, err := pagination.New(apiClient, pagination.DefaultConfig("posts"))
//	unsubscribe := ctrl.Subscribe(render)
//	ctrl.Load()
//	...
//	ctrl.LoadMoreIfNeeded(&visibleItem)
//
// The end of a collection is detected by a short page: a page holding fewer
// items than the page size means there is nothing after it.
//
// BatchFetcher walks a whole collection in parallel windows of pages, for
// exports and warm-up jobs that need every item at once.
package pagination
