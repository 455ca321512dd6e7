package cafe

// Pagination bounds enforced by the feed orchestrator before Paginate
// is called.
const (
	DefaultPage = 1
	DefaultTake = 20
	MaxTake     = 20
)

// PageResult is one slice of a candidate sequence.
type PageResult struct {
	Items []*Cafe

	// HasNextPage is inferred from the over-fetch: the slice starting at
	// the page offset held more than take items. It says nothing about
	// whether the next page will be non-empty after concurrent changes.
	HasNextPage bool
}

// Paginate slices candidates into the requested page using the
// over-fetch trick: take+1 items are examined so HasNextPage can be
// decided without a separate count, and the extra item is dropped.
// Preconditions (page >= 1, 1 <= take <= MaxTake) are the caller's
// responsibility; a page past the end yields an empty result.
func Paginate(candidates []*Cafe, page, take int) PageResult {
	offset := (page - 1) * take
	if offset >= len(candidates) {
		return PageResult{Items: []*Cafe{}}
	}

	end := offset + take + 1
	if end > len(candidates) {
		end = len(candidates)
	}
	window := candidates[offset:end]

	if len(window) > take {
		return PageResult{Items: window[:take], HasNextPage: true}
	}
	return PageResult{Items: window}
}
