package catalog

// DefaultPageSize is the catalog grid size
const DefaultPageSize = 28

// Page describes one page of a list
type Page struct {
	Number     int
	Size       int
	TotalItems int
	TotalPages int
	// Reset is set when the requested page was out of range and Number was
	// moved back to 1
	Reset bool
}

// HasPrevious reports whether a previous page exists
func (p Page) HasPrevious() bool { return p.Number > 1 }

// HasNext reports whether a next page exists
func (p Page) HasNext() bool { return p.Number < p.TotalPages }

// Previous returns the previous page number
func (p Page) Previous() int { return p.Number - 1 }

// Next returns the next page number
func (p Page) Next() int { return p.Number + 1 }

// TotalPages returns ceil(total/size), and zero for an empty list
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Paginate resolves the requested page against total items. A page below 1
// becomes 1; a page past the last becomes 1 with Reset set.
func Paginate(total, size, page int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	p := Page{Number: page, Size: size, TotalItems: total, TotalPages: TotalPages(total, size)}
	if p.Number < 1 {
		p.Number = 1
	}
	if p.TotalPages > 0 && p.Number > p.TotalPages {
		p.Number = 1
		p.Reset = true
	}
	return p
}

// Slice returns the items on page p
func Slice[T any](items []T, p Page) []T {
	start := (p.Number - 1) * p.Size
	if start < 0 || start >= len(items) {
		return []T{}
	}
	end := start + p.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// Item is an entry of the page selector: a page number or an ellipsis
type Item struct {
	Page     int
	Ellipsis bool
	Current  bool
}

// PageItems returns the selector for current out of total pages. The first,
// last, current and its neighbours are always shown. A gap of exactly one
// page shows that page; a longer gap shows a single ellipsis.
func PageItems(current, total int) []Item {
	if total <= 0 {
		return nil
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}

	visible := func(n int) bool {
		return n == 1 || n == total || (n >= current-1 && n <= current+1)
	}

	var items []Item
	last := 0
	for n := 1; n <= total; n++ {
		if !visible(n) {
			continue
		}
		switch gap := n - last - 1; {
		case gap == 1:
			items = append(items, Item{Page: n - 1})
		case gap > 1:
			items = append(items, Item{Ellipsis: true})
		}
		items = append(items, Item{Page: n, Current: n == current})
		last = n
	}
	return items
}
