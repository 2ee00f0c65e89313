package catalog

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"libris-backend/internal/platform/apierr"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// 検索（キーワード部分一致）
	r.GET("/books/search", h.Search)

	r.GET("/books", h.ListBooks)
	r.GET("/books/:id", h.GetBook)
	r.POST("/books", h.AddBook)
}

// ---------- handlers ----------

// GET /books/search?keyword=
func (h *Handler) Search(c *gin.Context) {
	res, err := h.svc.Search(c.Request.Context(), c.Query("keyword"))
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /books?available=true
func (h *Handler) ListBooks(c *gin.Context) {
	availableOnly := false
	if v := c.Query("available"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			apierr.Abort(c, apierr.ErrInvalid("available must be a boolean"))
			return
		}
		availableOnly = b
	}
	res, err := h.svc.ListBooks(c.Request.Context(), availableOnly)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": res, "total": len(res)})
}

func (h *Handler) GetBook(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		apierr.Abort(c, apierr.ErrInvalid("invalid id"))
		return
	}
	res, err := h.svc.GetBook(c.Request.Context(), id)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) AddBook(c *gin.Context) {
	var req CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.ErrInvalid("invalid json or missing required fields"))
		return
	}
	res, err := h.svc.AddBook(c.Request.Context(), req)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	c.Header("Location", "/books/"+strconv.FormatInt(res.ID, 10))
	c.JSON(http.StatusCreated, res)
}
