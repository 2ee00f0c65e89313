package circulation

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"libris-backend/internal/platform/apierr"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// 貸出・返却
	r.POST("/borrows", h.Borrow)
	r.POST("/returns", h.Return)

	// 貸出履歴
	r.GET("/transactions", h.ListTransactions)
	r.GET("/transactions/:id", h.GetTransaction)
}

// ---------- handlers ----------

// POST /borrows
func (h *Handler) Borrow(c *gin.Context) {
	var req BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.ErrInvalid("invalid json or missing required fields"))
		return
	}
	res, err := h.svc.Borrow(c.Request.Context(), req)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.Header("Location", "/transactions/"+strconv.FormatInt(res.TransactionID, 10))
	c.JSON(http.StatusCreated, res)
}

// POST /returns
func (h *Handler) Return(c *gin.Context) {
	var req ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.ErrInvalid("invalid json or missing required fields"))
		return
	}
	res, err := h.svc.Return(c.Request.Context(), req)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetTransaction(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		apierr.Abort(c, apierr.ErrInvalid("invalid id"))
		return
	}
	res, err := h.svc.GetTransaction(c.Request.Context(), id)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /transactions?user_id=&book_id=&open=&limit=&offset=&order=
func (h *Handler) ListTransactions(c *gin.Context) {
	f, err := ParseFilter(c)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	p := Page{
		Limit:  parseIntDefault(c.Query("limit"), defaultLimit),
		Offset: parseIntDefault(c.Query("offset"), 0),
		Order:  strings.ToLower(c.DefaultQuery("order", "desc")),
	}
	res, err := h.svc.ListTransactions(c.Request.Context(), f, p)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- helpers ----------

// ParseFilter reads user_id, book_id and open from the query string.
func ParseFilter(c *gin.Context) (TransactionFilter, error) {
	var f TransactionFilter
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, apierr.ErrInvalid("user_id must be an integer")
		}
		f.UserID = &id
	}
	if v := c.Query("book_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, apierr.ErrInvalid("book_id must be an integer")
		}
		f.BookID = &id
	}
	if v := c.Query("open"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, apierr.ErrInvalid("open must be a boolean")
		}
		f.Open = &b
	}
	return f, nil
}

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}
