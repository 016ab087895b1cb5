package protocol

// pageParams are the pagination fields shared by the query commands.
// The external page index is 0-based. An absent size defaults to 20;
// an explicit size outside 1..100 is rejected.
type pageParams struct {
	Page int  `json:"page"`
	Size *int `json:"size"`
}

const sizeRangeError = "Invalid parameter: size must be between 1 and 100"

// resolve validates the window and returns the effective page/size.
func (p pageParams) resolve() (page, size int, ok bool) {
	size = 20
	if p.Size != nil {
		size = *p.Size
	}
	if size <= 0 || size > 100 {
		return 0, 0, false
	}
	page = p.Page
	if page < 0 {
		page = 0
	}
	return page, size, true
}

// pageReply is the standard envelope for paginated query results.
type pageReply struct {
	Page      int `json:"page"`
	Size      int `json:"size"`
	Total     int `json:"total"`
	TotalPage int `json:"totalPage"`
	Count     int `json:"count"`
	Content   any `json:"content"`
}

func newPageReply(page, size, total, count int, content any) pageReply {
	return pageReply{
		Page:      page,
		Size:      size,
		Total:     total,
		TotalPage: (total + size - 1) / size,
		Count:     count,
		Content:   content,
	}
}
