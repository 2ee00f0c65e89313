package reports

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"libris-backend/internal/circulation"
	"libris-backend/internal/platform/apierr"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/reports/transactions.csv", h.ExportTransactions)
}

// GET /reports/transactions.csv?encoding=&user_id=&book_id=&open=
func (h *Handler) ExportTransactions(c *gin.Context) {
	f, err := circulation.ParseFilter(c)
	if err != nil {
		apierr.Abort(c, err)
		return
	}
	enc := c.Query("encoding")
	charset, err := Charset(enc)
	if err != nil {
		apierr.Abort(c, err)
		return
	}

	// 途中で失敗したときに JSON エラーを返せるよう、いったんバッファに書く
	var buf bytes.Buffer
	if err := h.svc.ExportTransactionsCSV(c.Request.Context(), &buf, f, enc); err != nil {
		apierr.Abort(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="transactions.csv"`)
	c.Data(http.StatusOK, "text/csv; charset="+charset, buf.Bytes())
}
