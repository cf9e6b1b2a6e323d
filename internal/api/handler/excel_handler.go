package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/boq-ai/internal/api/dto"
	"github.com/cuongbtq/boq-ai/internal/workbook"
)

const excelFileName = "boq_with_costing.xlsx"

// GenerateExcel handles POST /api/generate_excel
// Errors are JSON bodies; success is the workbook itself
func (h *ExcelHandler) GenerateExcel(c *gin.Context) {
	var req dto.GenerateExcelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if len(req.BoqItems) == 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "No BoQ items provided"})
		return
	}

	for i, item := range req.BoqItems {
		if item.Quantity < 0 || item.UnitPrice < 0 {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error: fmt.Sprintf("Item %d has a negative quantity or unit price", i+1),
			})
			return
		}
	}

	data, err := workbook.Build(req.BoqItems)
	if err != nil {
		h.logger.Error("Failed to build workbook", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to generate spreadsheet"})
		return
	}

	h.logger.Info("Spreadsheet generated",
		slog.Int("rows", len(req.BoqItems)),
		slog.Int("bytes", len(data)),
	)

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", excelFileName))
	c.Data(http.StatusOK, workbook.ContentType, data)
}
