package http

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"costnest/internal/log"
)

func (s *Server) handleExportJSON(c *gin.Context) {
	doc, err := s.svc.Backup.ExportAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if c.Query("download") == "true" {
		c.Header("Content-Disposition", `attachment; filename="`+exportFilename(s.now(), "json")+`"`)
	}
	log.FromContext(c.Request.Context()).InfoContext(c.Request.Context(), "Backup exported",
		log.FieldOperation, log.OpExport, "format", "json", "expenses", len(doc.Expenses))
	respondOK(c, doc)
}

// handleExportCSV renders into a buffer first so a failure can still be
// reported with a proper status.
func (s *Server) handleExportCSV(c *gin.Context) {
	var buf bytes.Buffer
	if err := s.svc.Backup.WriteCSV(c.Request.Context(), &buf); err != nil {
		respondError(c, err)
		return
	}
	log.FromContext(c.Request.Context()).InfoContext(c.Request.Context(), "Backup exported",
		log.FieldOperation, log.OpExport, "format", "csv")
	attachment(c, exportFilename(s.now(), "csv"), "text/csv; charset=utf-8")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) handleExportXLSX(c *gin.Context) {
	const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	var buf bytes.Buffer
	if err := s.svc.Backup.WriteXLSX(c.Request.Context(), &buf); err != nil {
		respondError(c, err)
		return
	}
	log.FromContext(c.Request.Context()).InfoContext(c.Request.Context(), "Backup exported",
		log.FieldOperation, log.OpExport, "format", "xlsx")
	attachment(c, exportFilename(s.now(), "xlsx"), xlsxType)
	c.Data(http.StatusOK, xlsxType, buf.Bytes())
}

func (s *Server) handleImport(c *gin.Context) {
	ctx := c.Request.Context()
	raw, err := readBody(c, maxImportBytes)
	if err != nil {
		respondError(c, err)
		return
	}
	sum, err := s.svc.Backup.ImportAll(ctx, raw)
	if err != nil {
		respondError(c, err)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Backup imported",
		log.FieldOperation, log.OpImport, "expenses", sum.Expenses, "keys", sum.Keys)
	respondOK(c, gin.H{"success": true, "import": sum})
}
