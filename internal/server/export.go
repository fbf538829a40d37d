package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/joelkehle/patentos/internal/agent"
	"github.com/joelkehle/patentos/internal/report"
)

// handleExport returns the data packet of one record. The analysis is
// included only when the record is selected and its analysis has finished.
func (s *Server) handleExport(c *gin.Context) {
	id := c.Param("id")
	rec, _, ok := s.store.Lookup(id)
	if !ok {
		writeActionError(c, agent.ErrUnknownEntity)
		return
	}
	p := report.Packet{Record: rec, GeneratedAt: s.now()}
	if a := s.store.Snapshot().Analysis; a != nil && a.EntityID == id && !a.Loading {
		p.Analysis = a.Text
	}
	markdown := p.Markdown()
	filename := "patentos-" + safeFilename(id)

	switch format := strings.ToLower(c.DefaultQuery("format", "md")); format {
	case "md", "markdown":
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.md"`, filename))
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(markdown))
	case "html":
		doc, err := report.Document(p.Title(), markdown)
		if err != nil {
			s.logger.Warn("export_html_failed", zap.String("entity_id", id), zap.Error(err))
			writeError(c, http.StatusInternalServerError, "failed to render packet")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc))
	case "pdf":
		if s.pdf == nil {
			writeError(c, http.StatusServiceUnavailable, "pdf export is not available")
			return
		}
		pdf, err := s.pdf.Render(c.Request.Context(), p.Title(), markdown)
		if err != nil {
			s.logger.Warn("export_pdf_failed", zap.String("entity_id", id), zap.Error(err))
			writeError(c, http.StatusServiceUnavailable, "pdf export is not available")
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, filename))
		c.Data(http.StatusOK, "application/pdf", pdf)
	default:
		writeError(c, http.StatusBadRequest, fmt.Sprintf("unsupported export format %q", format))
	}
}

func safeFilename(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
