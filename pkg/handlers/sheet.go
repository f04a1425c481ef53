package handlers

import (
	"encoding/csv"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/pharmacal-api/pkg/errs"
	"github.com/arnavshah/pharmacal-api/pkg/models"
)

type rowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ImportSheet loads a slot sheet exported from the spreadsheet. Each row is
// normalized on its own; bad rows are reported and the rest still import.
func (h *Handler) ImportSheet(c *gin.Context) {
	fileHeader, _ := c.FormFile("sheet_file")
	if fileHeader == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sheet_file is required"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open sheet file"})
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	roster, err := h.Store.Roster(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read sheet header"})
		return
	}
	cols := make(map[string]int)
	for i, name := range header {
		cols[strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")] = i
	}
	if _, ok := cols[models.ColDate]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sheet has no Date column"})
		return
	}

	imported := 0
	var failures []rowError
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			failures = append(failures, rowError{Row: row, Error: err.Error(), Code: "VALIDATION"})
			continue
		}

		raw := make(models.RawRecord, len(cols))
		for name, i := range cols {
			if i < len(record) {
				raw[name] = record[i]
			}
		}

		slot, err := models.Normalize(raw, roster)
		if err == nil {
			err = h.Store.ImportSlot(ctx, slot)
		}
		if err != nil {
			failures = append(failures, rowError{Row: row, Error: errs.Message(err), Code: errs.Code(err)})
			continue
		}
		imported++
	}

	c.JSON(http.StatusOK, gin.H{"imported": imported, "failed": failures})
}

// ExportSheet writes every persisted slot as CSV in the spreadsheet layout.
func (h *Handler) ExportSheet(c *gin.Context) {
	slots, err := h.Store.ReadSlots(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	var out strings.Builder
	writer := csv.NewWriter(&out)
	_ = writer.Write(models.SheetHeaders)
	for _, s := range slots {
		raw := models.Denormalize(s)
		record := make([]string, len(models.SheetHeaders))
		for i, name := range models.SheetHeaders {
			record[i] = raw[name]
		}
		_ = writer.Write(record)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="slots.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(out.String()))
}
