package catalog

// 書籍登録リクエスト
type CreateBookRequest struct {
	Title  string `json:"title" binding:"required"`
	Author string `json:"author"`
}

type BookResponse struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Available bool   `json:"available"`
	Display   string `json:"display"`
}

type SearchResult struct {
	Keyword string         `json:"keyword"`
	Items   []BookResponse `json:"items"`
	Total   int            `json:"total"`
}

func toResponse(b Book) BookResponse {
	return BookResponse{
		ID:        b.ID,
		Title:     b.Title.String,
		Author:    b.Author.String,
		Available: b.Available,
		Display:   b.Display(),
	}
}
